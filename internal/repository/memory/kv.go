package memory

import (
	"context"
	"sync"

	"github.com/implanttrace/healthbridge/internal/repository"
)

type kvStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewKVStore returns an in-memory store used in tests and as the fallback
// when no storage path is configured.
func NewKVStore() repository.KVStore {
	return &kvStore{entries: make(map[string][]byte)}
}

func (s *kvStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, true, nil
}

func (s *kvStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	s.entries[key] = cp
	return nil
}

func (s *kvStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *kvStore) Close() error {
	return nil
}
