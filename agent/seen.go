package agent

import "sync"

// seenSet is a bounded first-in-first-out set of URLs. When the limit is
// reached the oldest entry is evicted, so memory stays flat on long runs.
type seenSet struct {
	mu    sync.Mutex
	limit int
	set   map[string]struct{}
	order []string
}

func newSeenSet(limit int) *seenSet {
	if limit <= 0 {
		limit = 1024
	}
	return &seenSet{limit: limit, set: make(map[string]struct{}, limit)}
}

// Add records key and reports whether it was new.
func (s *seenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[key]; ok {
		return false
	}
	s.set[key] = struct{}{}
	s.order = append(s.order, key)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}
	return true
}

// Has reports whether key was seen and not yet evicted.
func (s *seenSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[key]
	return ok
}

// Len returns the current number of tracked keys.
func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}
