package repository

import (
	"context"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/domain/repository"
	"rentalportal/pkg/errors"
)

type kvIdentityRepository struct {
	store     repository.KeyValueStore
	namespace string
}

// NewKVIdentityRepository keeps each role's bundle under three keys,
// "<namespace><role>_token", "<namespace><role>_userInfo" and
// "<namespace><role>_userType", so roles sharing one store never collide.
func NewKVIdentityRepository(store repository.KeyValueStore, namespace string) repository.IdentityRepository {
	return &kvIdentityRepository{
		store:     store,
		namespace: namespace,
	}
}

func (r *kvIdentityRepository) tokenKey(role entity.Role) string {
	return r.namespace + string(role) + "_token"
}

func (r *kvIdentityRepository) profileKey(role entity.Role) string {
	return r.namespace + string(role) + "_userInfo"
}

func (r *kvIdentityRepository) roleTagKey(role entity.Role) string {
	return r.namespace + string(role) + "_userType"
}

func (r *kvIdentityRepository) Load(ctx context.Context, role entity.Role) (entity.StoredIdentity, error) {
	var stored entity.StoredIdentity

	fields := []struct {
		key string
		dst *string
	}{
		{r.tokenKey(role), &stored.Token},
		{r.profileKey(role), &stored.Profile},
		{r.roleTagKey(role), &stored.RoleTag},
	}
	for _, f := range fields {
		value, err := r.store.Get(ctx, f.key)
		if err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				continue
			}
			return entity.StoredIdentity{}, err
		}
		*f.dst = value
	}
	return stored, nil
}

func (r *kvIdentityRepository) Save(ctx context.Context, identity *entity.Identity) error {
	if !identity.Role.Valid() {
		return errors.BadRequest("Invalid role", nil)
	}
	if err := r.store.Set(ctx, r.tokenKey(identity.Role), identity.Token); err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.profileKey(identity.Role), string(identity.Profile)); err != nil {
		return err
	}
	return r.store.Set(ctx, r.roleTagKey(identity.Role), string(identity.Role))
}

func (r *kvIdentityRepository) SaveProfile(ctx context.Context, role entity.Role, profile []byte) error {
	return r.store.Set(ctx, r.profileKey(role), string(profile))
}

func (r *kvIdentityRepository) Delete(ctx context.Context, role entity.Role) error {
	return r.store.Delete(ctx, r.tokenKey(role), r.profileKey(role), r.roleTagKey(role))
}
