package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentcv-backend/internal/shared/util"
	"agentcv-backend/internal/usage/kv"
)

// LocalStore keeps one JSON-encoded record per device in a key-value store.
// Increment is read-modify-write; concurrent writers on different processes
// can lose an increment.
type LocalStore struct {
	KV kv.Store
}

// NewLocalStore constructs a LocalStore over store.
func NewLocalStore(store kv.Store) *LocalStore {
	return &LocalStore{KV: store}
}

// KeyFor returns the key used for id. The bare LocalKey is the single slot
// used when no device scope is known.
func KeyFor(id Identity) string {
	if id.Device == "" {
		return LocalKey
	}
	return LocalKey + ":" + util.HashKey(id.Device)
}

func (s *LocalStore) Load(ctx context.Context, id Identity) (UsageRecord, error) {
	raw, err := s.KV.Get(ctx, KeyFor(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return UsageRecord{}, ErrRecordNotFound
		}
		return UsageRecord{}, err
	}
	var rec UsageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return UsageRecord{}, fmt.Errorf("decode usage record: %w", err)
	}
	return rec, nil
}

func (s *LocalStore) Save(ctx context.Context, id Identity, rec UsageRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	return s.KV.Set(ctx, KeyFor(id), raw)
}

func (s *LocalStore) Increment(ctx context.Context, id Identity, today string) (UsageRecord, error) {
	rec, err := s.Load(ctx, id)
	if err != nil {
		return UsageRecord{}, err
	}
	if rec.LastResetDate != today {
		rec.Used = 0
		rec.LastResetDate = today
	}
	rec.Used++
	if err := s.Save(ctx, id, rec); err != nil {
		return UsageRecord{}, err
	}
	return rec, nil
}
