package repository

import (
	"context"
	"sync"

	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

type memoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyValueStore returns a process-local store. It is the default for
// the gateway in development and the store every usecase test runs against.
func NewMemoryKeyValueStore() repository.KeyValueStore {
	return &memoryKeyValueStore{values: make(map[string]string)}
}

func (s *memoryKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", errors.NotFound("Key", nil)
	}
	return value, nil
}

func (s *memoryKeyValueStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *memoryKeyValueStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.values, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryKeyValueStore) Close() error {
	return nil
}
