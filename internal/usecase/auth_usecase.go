package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/marketapi"
	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// AuthUseCase signs in against the rental backend and hands the result to
// the session.
type AuthUseCase struct {
	auth        AuthService
	session     *SessionUseCase
	rateLimiter *ratelimit.RateLimiter
	now         func() time.Time
}

func NewAuthUseCase(auth AuthService, session *SessionUseCase, rateLimiter *ratelimit.RateLimiter) *AuthUseCase {
	return &AuthUseCase{
		auth:        auth,
		session:     session,
		rateLimiter: rateLimiter,
		now:         time.Now,
	}
}

func (uc *AuthUseCase) Login(ctx context.Context, role entity.Role, creds marketapi.Credentials) (*entity.Identity, error) {
	if !role.Valid() {
		return nil, errors.BadRequest("Invalid role", nil)
	}
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(string(role)+":"+creds.Account, ratelimit.ActionLogin); !allowed {
			metrics.RateLimitHits.WithLabelValues(ratelimit.ActionLogin).Inc()
			return nil, errors.TooManyRequests(fmt.Sprintf("Too many login attempts, retry in %v", wait.Round(time.Second)), nil)
		}
	}

	result, err := uc.auth.Login(ctx, role, creds)
	if err != nil {
		logger.Warn("Login failed for %s: %v", role, err)
		return nil, err
	}
	return uc.establish(ctx, role, result)
}

func (uc *AuthUseCase) Register(ctx context.Context, role entity.Role, reg marketapi.Registration) (*entity.Identity, error) {
	if role != entity.RoleCustomer && role != entity.RoleMerchant {
		return nil, errors.BadRequest("Registration is not available for this role", nil)
	}

	result, err := uc.auth.Register(ctx, role, reg)
	if err != nil {
		logger.Warn("Register failed for %s: %v", role, err)
		return nil, err
	}
	return uc.establish(ctx, role, result)
}

func (uc *AuthUseCase) establish(ctx context.Context, role entity.Role, result *marketapi.AuthResult) (*entity.Identity, error) {
	token := result.Token
	if token == "" {
		token = uc.syntheticToken(role)
	}
	return uc.session.Login(ctx, token, result.Profile, role)
}

// syntheticToken stands in for a backend that authenticates without issuing
// a token: "<role>_<unix millis>_<9 random characters>".
func (uc *AuthUseCase) syntheticToken(role entity.Role) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", role, uc.now().UnixMilli(), suffix)
}
