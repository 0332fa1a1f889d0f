package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

type firestoreKeyValueStore struct {
	client     *firestore.Client
	collection string
}

type storedValue struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// NewFirestoreKeyValueStore stores each key as one document of collection.
func NewFirestoreKeyValueStore(client *firestore.Client, collection string) repository.KeyValueStore {
	return &firestoreKeyValueStore{
		client:     client,
		collection: collection,
	}
}

func (s *firestoreKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	doc, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", errors.NotFound("Key", err)
		}
		return "", errors.Internal("Failed to get key", err)
	}

	var stored storedValue
	if err := doc.DataTo(&stored); err != nil {
		return "", errors.Internal("Failed to parse stored value", err)
	}
	return stored.Value, nil
}

func (s *firestoreKeyValueStore) Set(ctx context.Context, key, value string) error {
	_, err := s.client.Collection(s.collection).Doc(key).Set(ctx, storedValue{
		Value:     value,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return errors.Internal("Failed to set key", err)
	}
	return nil
}

func (s *firestoreKeyValueStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.client.Collection(s.collection).Doc(key).Delete(ctx); err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return errors.Internal("Failed to delete key", err)
		}
	}
	return nil
}

func (s *firestoreKeyValueStore) Close() error {
	return s.client.Close()
}
