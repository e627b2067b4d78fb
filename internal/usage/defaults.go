package usage

const (
	DefaultAnonymousLimit     = 3
	DefaultAuthenticatedLimit = 10

	// LocalKey is the key under which the local counter record is stored.
	LocalKey = "agentcv-usage"

	dateLayout = "2006-01-02"
)

func freshRecord(id Identity, limit int, today string) UsageRecord {
	return UsageRecord{
		UserID:        id.UserID,
		Used:          0,
		Limit:         limit,
		LastResetDate: today,
	}
}
