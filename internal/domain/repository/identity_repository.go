package repository

import (
	"context"

	"rentalportal/internal/domain/entity"
)

// KeyValueStore is the durable storage origin shared by every portal.
// Get returns an errors.NotFound AppError for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// IdentityRepository persists one credential bundle per role.
type IdentityRepository interface {
	// Load returns whatever the role's slot holds. A never-written slot is
	// returned as an empty StoredIdentity, not an error.
	Load(ctx context.Context, role entity.Role) (entity.StoredIdentity, error)
	Save(ctx context.Context, identity *entity.Identity) error
	SaveProfile(ctx context.Context, role entity.Role, profile []byte) error
	Delete(ctx context.Context, role entity.Role) error
}
