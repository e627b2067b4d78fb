package usage

import (
	"context"
	"sync"
)

// MemoryStore keeps usage records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]UsageRecord
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]UsageRecord)}
}

func (s *MemoryStore) Load(ctx context.Context, id Identity) (UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return UsageRecord{}, err
	}
	s.mu.RLock()
	rec, ok := s.data[id.Key()]
	s.mu.RUnlock()
	if !ok {
		return UsageRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, id Identity, rec UsageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data[id.Key()] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, id Identity, today string) (UsageRecord, error) {
	if err := ctx.Err(); err != nil {
		return UsageRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id.Key()]
	if !ok {
		return UsageRecord{}, ErrRecordNotFound
	}
	if rec.LastResetDate != today {
		rec.Used = 0
		rec.LastResetDate = today
	}
	rec.Used++
	s.data[id.Key()] = rec
	return rec, nil
}
