package kvstore

import "sync"

// MemStore is an in-memory KV implementation. It is safe for concurrent use.
// Data is lost on restart - used by tests and by session-scoped state.
type MemStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemStore creates a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

// Get implements the KV interface.
func (s *MemStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	return value, exists, nil
}

// Set implements the KV interface.
func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}
