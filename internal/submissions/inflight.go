package submissions

import "sync"

// inflightSet admits one submission per identity key at a time.
type inflightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (s *inflightSet) acquire(key string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	if _, busy := s.keys[key]; busy {
		return nil, false
	}
	s.keys[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.keys, key)
		s.mu.Unlock()
	}, true
}
