package delta

import (
	"sync"
)

// hashSet is the set of content hashes submitted for transfer during the
// current run. Workers race on it, so check-and-insert is atomic.
type hashSet struct {
	mu sync.Mutex
	m  map[string]struct{}
}

func newHashSet() *hashSet {
	return &hashSet{
		m: make(map[string]struct{}),
	}
}

// Insert adds the hash and reports whether it was already present.
func (s *hashSet) Insert(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.m[hash]
	if !present {
		s.m[hash] = struct{}{}
	}
	return present
}

func (s *hashSet) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.m[hash]
	return present
}

func (s *hashSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.m)
}
