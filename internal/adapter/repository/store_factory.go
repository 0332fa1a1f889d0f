package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/config"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// NewKeyValueStore opens the storage origin selected by cfg.StoreDriver.
func NewKeyValueStore(ctx context.Context, cfg *config.Config) (repository.KeyValueStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("Using in-memory identity store, sessions will not survive a restart")
		return NewMemoryKeyValueStore(), nil
	case "pebble":
		logger.Info("Opening pebble identity store at %s", cfg.PebblePath)
		return NewPebbleKeyValueStore(cfg.PebblePath)
	case "redis":
		logger.Info("Connecting to redis identity store")
		return NewRedisKeyValueStore(ctx, cfg.RedisURL)
	case "firestore":
		var opts []option.ClientOption
		if cfg.FirestoreCredential != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FirestoreCredential))
		}
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject, opts...)
		if err != nil {
			return nil, errors.Internal("Failed to initialize Firestore", err)
		}
		logger.Info("Using firestore identity store, collection %s", cfg.FirestoreCollection)
		return NewFirestoreKeyValueStore(client, cfg.FirestoreCollection), nil
	}
	return nil, errors.BadRequest("Unknown store driver "+cfg.StoreDriver, nil)
}
