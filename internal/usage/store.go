package usage

import "context"

// CounterStore persists usage records for one backend.
type CounterStore interface {
	// Load returns ErrRecordNotFound when the identity has no record.
	Load(ctx context.Context, id Identity) (UsageRecord, error)
	Save(ctx context.Context, id Identity, rec UsageRecord) error
	// Increment adds one to the counter, restarting it at one if the stored
	// date differs from today. Returns ErrRecordNotFound when there is no record.
	Increment(ctx context.Context, id Identity, today string) (UsageRecord, error)
}
