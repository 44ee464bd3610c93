// Package seen records which post identifiers have already been delivered.
//
// Entries never expire. The memory store is reset on every restart; the
// memcache and redis stores survive restarts for as long as their server
// keeps the data.
package seen

import (
	"context"
	"sync"
)

// Store is the set of delivered post identifiers
type Store interface {
	// Add records key and reports whether it was absent before the call
	Add(ctx context.Context, key string) (bool, error)

	// Contains reports whether key has been recorded
	Contains(ctx context.Context, key string) (bool, error)

	// Len returns the number of keys recorded by this process
	Len() int
}

// MemoryStore keeps seen keys in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

// Add records key and reports whether it was new
func (s *MemoryStore) Add(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

// Contains reports whether key was recorded
func (s *MemoryStore) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[key]
	return ok, nil
}

// Len returns the number of recorded keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
