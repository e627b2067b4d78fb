package usage

import "errors"

var (
	// ErrQuotaExceeded indicates the identity used up today's submissions.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrStoreUnavailable wraps failures of the remote counter store.
	ErrStoreUnavailable = errors.New("usage store unavailable")
	// ErrRecordNotFound is returned by counter stores when no record exists yet.
	ErrRecordNotFound = errors.New("usage record not found")
)
