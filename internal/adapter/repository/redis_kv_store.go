package repository

import (
	"context"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

type redisKeyValueStore struct {
	client *redis.Client
}

// NewRedisKeyValueStore connects to redisURL and verifies the connection.
func NewRedisKeyValueStore(ctx context.Context, redisURL string) (repository.KeyValueStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.BadRequest("Invalid REDIS_URL", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Internal("Failed to connect to redis", err)
	}

	return &redisKeyValueStore{client: client}, nil
}

func (s *redisKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return "", errors.NotFound("Key", err)
		}
		return "", errors.Internal("Failed to read key", err)
	}
	return value, nil
}

func (s *redisKeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Internal("Failed to write key", err)
	}
	return nil
}

func (s *redisKeyValueStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Internal("Failed to delete keys", err)
	}
	return nil
}

func (s *redisKeyValueStore) Close() error {
	return s.client.Close()
}
