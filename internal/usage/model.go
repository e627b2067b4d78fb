package usage

import "strings"

// IdentityClass separates anonymous visitors from signed-in users.
type IdentityClass string

const (
	ClassAnonymous     IdentityClass = "anonymous"
	ClassAuthenticated IdentityClass = "authenticated"
)

// Identity is who a usage counter belongs to. UserID comes from the identity
// provider; when it is empty the caller is anonymous and Device scopes the
// local counter (guest header in the API, config dir in the CLI).
type Identity struct {
	UserID string
	Device string
}

// Authenticated reports whether the identity carries a user id.
func (id Identity) Authenticated() bool {
	return strings.TrimSpace(id.UserID) != ""
}

// Class returns the identity class used to pick the daily limit.
func (id Identity) Class() IdentityClass {
	if id.Authenticated() {
		return ClassAuthenticated
	}
	return ClassAnonymous
}

// Key is a process-local key for the identity.
func (id Identity) Key() string {
	if id.Authenticated() {
		return "user:" + strings.TrimSpace(id.UserID)
	}
	return "device:" + id.Device
}

// UsageRecord is one identity's counter for the current day.
type UsageRecord struct {
	UserID        string `json:"-"`
	Used          int    `json:"used"`
	Limit         int    `json:"limit"`
	LastResetDate string `json:"lastResetDate"`
}

// Remaining returns how many submissions are left today.
func (r UsageRecord) Remaining() int {
	if r.Used >= r.Limit {
		return 0
	}
	return r.Limit - r.Used
}

// Limits holds the daily limit per identity class.
type Limits struct {
	Anonymous     int
	Authenticated int
}

// For returns the limit for class, falling back to the defaults for unset values.
func (l Limits) For(class IdentityClass) int {
	if class == ClassAuthenticated {
		if l.Authenticated > 0 {
			return l.Authenticated
		}
		return DefaultAuthenticatedLimit
	}
	if l.Anonymous > 0 {
		return l.Anonymous
	}
	return DefaultAnonymousLimit
}
