package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agentcv-backend/internal/shared/telemetry"
)

// Service is the quota ledger. Anonymous identities are counted in the local
// store and authenticated ones in the remote store; one identity never touches both.
type Service struct {
	local  CounterStore
	remote CounterStore
	limits Limits
	clock  func() time.Time
	loc    *time.Location
	locks  keyedMutex
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used to compute today's date.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the timezone in which the daily reset happens.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService constructs the ledger. remote may be nil, in which case every
// authenticated call reports ErrStoreUnavailable.
func NewService(local, remote CounterStore, limits Limits, opts ...Option) *Service {
	if local == nil {
		local = NewMemoryStore()
	}
	s := &Service{
		local:  local,
		remote: remote,
		limits: limits,
		clock:  time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date in the ledger's timezone.
func (s *Service) Today() string {
	return s.clock().In(s.loc).Format(dateLayout)
}

// Limit returns the configured daily limit for id.
func (s *Service) Limit(id Identity) int {
	return s.limits.For(id.Class())
}

// GetUsage loads the record for id, resetting it first if it belongs to an earlier day.
func (s *Service) GetUsage(ctx context.Context, id Identity) (UsageRecord, error) {
	unlock := s.locks.Lock(id.Key())
	defer unlock()
	return s.load(ctx, id)
}

// CanSubmit reports whether id has submissions left today. Remote store failures
// return false together with the error.
func (s *Service) CanSubmit(ctx context.Context, id Identity) (bool, UsageRecord, error) {
	rec, err := s.GetUsage(ctx, id)
	if err != nil {
		return false, rec, err
	}
	return rec.Used < rec.Limit, rec, nil
}

// RecordSubmission counts one successful submission for id.
func (s *Service) RecordSubmission(ctx context.Context, id Identity) (UsageRecord, error) {
	unlock := s.locks.Lock(id.Key())
	defer unlock()

	rec, err := s.load(ctx, id)
	if err != nil {
		return rec, err
	}
	today := rec.LastResetDate

	updated, err := s.storeFor(id).Increment(ctx, id, today)
	if err != nil {
		if id.Authenticated() {
			return rec, s.remoteFailure("increment", id, err)
		}
		s.localFailure("increment", id, err)
		rec.Used++
		return rec, nil
	}
	updated.UserID = id.UserID
	updated.Limit = s.Limit(id)
	return updated, nil
}

// Reset zeroes today's counter for id.
func (s *Service) Reset(ctx context.Context, id Identity) (UsageRecord, error) {
	unlock := s.locks.Lock(id.Key())
	defer unlock()

	rec := freshRecord(id, s.Limit(id), s.Today())
	if err := s.save(ctx, id, rec); err != nil {
		return UsageRecord{}, err
	}
	return rec, nil
}

// load must be called with the identity lock held.
func (s *Service) load(ctx context.Context, id Identity) (UsageRecord, error) {
	today := s.Today()
	limit := s.Limit(id)

	rec, err := s.storeFor(id).Load(ctx, id)
	dirty := false
	switch {
	case err == nil:
	case errors.Is(err, ErrRecordNotFound):
		rec = freshRecord(id, limit, today)
		dirty = true
	case id.Authenticated():
		return UsageRecord{UserID: id.UserID, Limit: limit, LastResetDate: today}, s.remoteFailure("load", id, err)
	default:
		s.localFailure("load", id, err)
		rec = freshRecord(id, limit, today)
		dirty = true
	}

	rec.UserID = id.UserID
	rec.Limit = limit
	if rec.LastResetDate != today {
		rec.Used = 0
		rec.LastResetDate = today
		dirty = true
	}
	if rec.Used < 0 {
		rec.Used = 0
	}

	if dirty {
		if err := s.save(ctx, id, rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func (s *Service) save(ctx context.Context, id Identity, rec UsageRecord) error {
	if err := s.storeFor(id).Save(ctx, id, rec); err != nil {
		if id.Authenticated() {
			return s.remoteFailure("save", id, err)
		}
		s.localFailure("save", id, err)
	}
	return nil
}

func (s *Service) storeFor(id Identity) CounterStore {
	if id.Authenticated() {
		if s.remote == nil {
			return unavailableStore{}
		}
		return s.remote
	}
	return s.local
}

func (s *Service) remoteFailure(op string, id Identity, err error) error {
	telemetry.Error("usage.remote_store_failed", map[string]any{
		"op":      op,
		"user_id": id.UserID,
		"error":   err,
	})
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (s *Service) localFailure(op string, id Identity, err error) {
	telemetry.Warn("usage.local_store_failed", map[string]any{
		"op":     op,
		"device": id.Device,
		"error":  err,
	})
}

type unavailableStore struct{}

func (unavailableStore) Load(context.Context, Identity) (UsageRecord, error) {
	return UsageRecord{}, fmt.Errorf("%w: no remote store configured", ErrStoreUnavailable)
}

func (unavailableStore) Save(context.Context, Identity, UsageRecord) error {
	return fmt.Errorf("%w: no remote store configured", ErrStoreUnavailable)
}

func (unavailableStore) Increment(context.Context, Identity, string) (UsageRecord, error) {
	return UsageRecord{}, fmt.Errorf("%w: no remote store configured", ErrStoreUnavailable)
}

// keyedMutex serializes ledger operations per identity key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
