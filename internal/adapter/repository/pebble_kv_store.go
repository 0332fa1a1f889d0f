package repository

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

type pebbleKeyValueStore struct {
	db *pebble.DB
}

// NewPebbleKeyValueStore opens (creating if needed) a pebble database at path.
func NewPebbleKeyValueStore(path string) (repository.KeyValueStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Internal("Failed to create identity store directory", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Internal("Failed to open identity store", err)
	}
	return &pebbleKeyValueStore{db: db}, nil
}

func (s *pebbleKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if stderrors.Is(err, pebble.ErrNotFound) {
			return "", errors.NotFound("Key", err)
		}
		return "", errors.Internal("Failed to read key", err)
	}
	defer closer.Close()

	// v is only valid until closer is closed
	return string(v), nil
}

func (s *pebbleKeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return errors.Internal("Failed to write key", err)
	}
	return nil
}

func (s *pebbleKeyValueStore) Delete(ctx context.Context, keys ...string) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return errors.Internal("Failed to delete key", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Internal("Failed to delete keys", err)
	}
	return nil
}

func (s *pebbleKeyValueStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
