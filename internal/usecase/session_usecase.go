package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/domain/repository"
	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// SessionUseCase resolves which persisted identity is active for one
// rendering context and mediates every login, logout and profile update.
// Several SessionUseCase values may share one IdentityRepository.
type SessionUseCase struct {
	identities     repository.IdentityRepository
	minTokenLength int
	now            func() time.Time

	// ops serializes operations that touch storage
	ops sync.Mutex

	mu          sync.RWMutex
	path        string
	state       entity.Session
	initialized bool
	subscribers map[int]func(entity.Session)
	nextSub     int
}

func NewSessionUseCase(identities repository.IdentityRepository, minTokenLength int) *SessionUseCase {
	return &SessionUseCase{
		identities:     identities,
		minTokenLength: minTokenLength,
		now:            time.Now,
		path:           "/",
		subscribers:    make(map[int]func(entity.Session)),
	}
}

// Navigate sets the rendering context and returns the role it maps to.
func (uc *SessionUseCase) Navigate(path string) entity.Role {
	uc.mu.Lock()
	uc.path = path
	uc.mu.Unlock()
	return entity.RoleFromPath(path)
}

func (uc *SessionUseCase) Path() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.path
}

func (uc *SessionUseCase) Current() entity.Session {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return copySession(uc.state)
}

// Token returns the active bearer token, or "" when unauthenticated.
func (uc *SessionUseCase) Token() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if !uc.state.IsAuthenticated || uc.state.Identity == nil {
		return ""
	}
	return uc.state.Identity.Token
}

func (uc *SessionUseCase) Initialized() bool {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.initialized
}

// Subscribe registers fn to be called after every session change. Callbacks
// run outside the session's locks, on the goroutine that made the change.
func (uc *SessionUseCase) Subscribe(fn func(entity.Session)) func() {
	uc.mu.Lock()
	id := uc.nextSub
	uc.nextSub++
	uc.subscribers[id] = fn
	uc.mu.Unlock()

	return func() {
		uc.mu.Lock()
		delete(uc.subscribers, id)
		uc.mu.Unlock()
	}
}

// Initialize recovers a persisted session. On the root or an ambiguous
// context every role is probed in priority order and the first valid
// identity wins; on an explicit portal context only that role is checked.
// The first call completes initialization; later calls only re-validate the
// identity already active.
func (uc *SessionUseCase) Initialize(ctx context.Context, expected entity.Role) bool {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	uc.mu.RLock()
	initialized := uc.initialized
	path := uc.path
	active := uc.state
	uc.mu.RUnlock()

	if initialized {
		if !active.IsAuthenticated {
			return false
		}
		identity, ok := uc.validate(ctx, active.Role)
		if !ok {
			uc.setState(entity.Session{}, true)
			metrics.SessionTransitions.WithLabelValues(string(active.Role), "invalidated").Inc()
			return false
		}
		uc.setState(authenticated(identity), true)
		return true
	}

	candidates := entity.AllRoles
	target := expected
	if target == "" && !entity.IsDefaultContext(path) {
		target = entity.RoleFromPath(path)
	}
	if target != "" {
		candidates = []entity.Role{target}
	}

	for _, role := range candidates {
		identity, ok := uc.validate(ctx, role)
		if !ok {
			continue
		}
		uc.setState(authenticated(identity), true)
		metrics.SessionTransitions.WithLabelValues(string(role), "recovered").Inc()
		logger.Info("Session recovered for %s %d", role, identity.ID)
		return true
	}

	uc.setState(entity.Session{}, true)
	return false
}

// Login persists identity under role and evicts every other role's bundle.
func (uc *SessionUseCase) Login(ctx context.Context, token string, profile json.RawMessage, role entity.Role) (*entity.Identity, error) {
	if !role.Valid() {
		return nil, errors.BadRequest("Invalid role", nil)
	}
	if token == "" {
		return nil, errors.BadRequest("Token is required", nil)
	}
	if !uc.plausibleToken(token) {
		return nil, errors.AuthInvalid("Token is not plausible", nil)
	}
	id, err := entity.ProfileID(profile)
	if err != nil {
		return nil, errors.BadRequest("Invalid profile", err)
	}

	uc.ops.Lock()
	defer uc.ops.Unlock()

	for _, other := range entity.AllRoles {
		if other == role {
			continue
		}
		if err := uc.identities.Delete(ctx, other); err != nil {
			logger.Error("Login Error: failed to evict %s identity: %v", other, err)
			uc.setState(entity.Session{}, true)
			return nil, errors.Internal("Failed to evict other portal sessions", err)
		}
	}

	identity := &entity.Identity{
		Role:    role,
		ID:      id,
		Token:   token,
		Profile: append(json.RawMessage(nil), profile...),
	}
	if err := uc.identities.Save(ctx, identity); err != nil {
		logger.Error("Login Error: failed to persist %s identity: %v", role, err)
		// storage may hold none of the roles now
		uc.setState(entity.Session{}, true)
		return nil, errors.Internal("Failed to persist session", err)
	}

	uc.setState(authenticated(identity), true)
	metrics.SessionTransitions.WithLabelValues(string(role), "login").Inc()
	logger.Info("Logged in as %s %d", role, id)

	copied := *identity
	return &copied, nil
}

// Logout clears the active role's persisted identity only.
func (uc *SessionUseCase) Logout(ctx context.Context) error {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	active := uc.Current()
	if !active.IsAuthenticated {
		uc.setState(entity.Session{}, true)
		return nil
	}

	err := uc.identities.Delete(ctx, active.Role)
	uc.setState(entity.Session{}, true)
	metrics.SessionTransitions.WithLabelValues(string(active.Role), "logout").Inc()
	if err != nil {
		logger.Error("Logout Error: failed to delete %s identity: %v", active.Role, err)
		return errors.Internal("Failed to clear session", err)
	}
	return nil
}

// UpdateIdentity overwrites the active role's profile, keeping the token.
// It is a no-op when unauthenticated.
func (uc *SessionUseCase) UpdateIdentity(ctx context.Context, profile json.RawMessage) error {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	active := uc.Current()
	if !active.IsAuthenticated || active.Identity == nil {
		return nil
	}

	id, err := entity.ProfileID(profile)
	if err != nil {
		return errors.BadRequest("Invalid profile", err)
	}
	if id != active.Identity.ID {
		return errors.BadRequest("Profile belongs to another participant", nil)
	}

	if err := uc.identities.SaveProfile(ctx, active.Role, profile); err != nil {
		logger.Error("UpdateIdentity Error: %v", err)
		return errors.Internal("Failed to update profile", err)
	}

	updated := *active.Identity
	updated.Profile = append(json.RawMessage(nil), profile...)
	uc.setState(authenticated(&updated), false)
	return nil
}

// CheckAuthStatus validates the persisted identity of the target role and
// adopts it. The target is expected when given, otherwise the role of the
// current context. On the root context an already active session keeps its
// role. Any validation failure purges the slot and fails closed.
func (uc *SessionUseCase) CheckAuthStatus(ctx context.Context, expected entity.Role) bool {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	uc.mu.RLock()
	path := uc.path
	active := uc.state
	uc.mu.RUnlock()

	target := expected
	if target == "" {
		switch {
		case entity.IsDefaultContext(path) && active.IsAuthenticated:
			target = active.Role
		default:
			target = entity.RoleFromPath(path)
		}
	}

	if target == "" {
		uc.setState(entity.Session{}, false)
		return false
	}

	identity, ok := uc.validate(ctx, target)
	if !ok {
		if active.IsAuthenticated {
			metrics.SessionTransitions.WithLabelValues(string(target), "invalidated").Inc()
		}
		uc.setState(entity.Session{}, false)
		return false
	}

	uc.setState(authenticated(identity), false)
	return true
}

// ClearInvalidAuth purges the credential the session was using and resets
// the session to unauthenticated. It is called when the backend rejects
// the token.
func (uc *SessionUseCase) ClearInvalidAuth(ctx context.Context) {
	uc.ops.Lock()
	defer uc.ops.Unlock()
	uc.clearInvalidLocked(ctx)
}

// ClearInvalidToken is ClearInvalidAuth for a response to a request that
// carried rejected. It does nothing once the session holds another token,
// so a late 401 for an old credential never purges its successor.
func (uc *SessionUseCase) ClearInvalidToken(ctx context.Context, rejected string) {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	uc.mu.RLock()
	active := uc.state
	path := uc.path
	uc.mu.RUnlock()

	if active.IsAuthenticated && active.Identity != nil {
		if active.Identity.Token != rejected {
			logger.Debug("ClearInvalidToken: ignoring 401 for a replaced %s token", active.Role)
			return
		}
	} else if role := entity.RoleFromPath(path); role != "" {
		stored, err := uc.identities.Load(ctx, role)
		if err == nil && stored.Token != "" && stored.Token != rejected {
			return
		}
	}
	uc.clearInvalidLocked(ctx)
}

func (uc *SessionUseCase) clearInvalidLocked(ctx context.Context) {
	uc.mu.RLock()
	role := uc.state.Role
	if !uc.state.IsAuthenticated {
		role = entity.RoleFromPath(uc.path)
	}
	uc.mu.RUnlock()

	if role != "" {
		if err := uc.identities.Delete(ctx, role); err != nil {
			logger.Warn("ClearInvalidAuth: failed to purge %s identity: %v", role, err)
		}
		metrics.SessionTransitions.WithLabelValues(string(role), "invalidated").Inc()
	}
	uc.setState(entity.Session{}, false)
}

// Teardown ends the session's lifetime. Persisted identities are kept;
// subscribers see one final unauthenticated state and are then dropped.
func (uc *SessionUseCase) Teardown() {
	uc.ops.Lock()
	defer uc.ops.Unlock()

	uc.setState(entity.Session{}, false)

	uc.mu.Lock()
	uc.subscribers = make(map[int]func(entity.Session))
	uc.mu.Unlock()
}

// validate loads role's slot and checks it. A slot that holds anything but
// fails a check is purged. Storage errors are treated as an absent slot.
func (uc *SessionUseCase) validate(ctx context.Context, role entity.Role) (*entity.Identity, bool) {
	stored, err := uc.identities.Load(ctx, role)
	if err != nil {
		logger.Warn("Session: failed to read %s identity, treating as absent: %v", role, err)
		return nil, false
	}
	if stored.Empty() {
		return nil, false
	}

	identity, reason := uc.parseStored(role, stored)
	if reason != "" {
		logger.Warn("Session: purging %s identity: %s", role, reason)
		if err := uc.identities.Delete(ctx, role); err != nil {
			logger.Warn("Session: failed to purge %s identity: %v", role, err)
		}
		return nil, false
	}
	return identity, true
}

func (uc *SessionUseCase) parseStored(role entity.Role, stored entity.StoredIdentity) (*entity.Identity, string) {
	if stored.Token == "" {
		return nil, "missing token"
	}
	if !uc.plausibleToken(stored.Token) {
		return nil, "implausible token"
	}
	if stored.RoleTag != string(role) {
		return nil, fmt.Sprintf("role tag %q does not match", stored.RoleTag)
	}
	if stored.Profile == "" {
		return nil, "missing profile"
	}
	id, err := entity.ProfileID([]byte(stored.Profile))
	if err != nil {
		return nil, err.Error()
	}
	return &entity.Identity{
		Role:    role,
		ID:      id,
		Token:   stored.Token,
		Profile: json.RawMessage(stored.Profile),
	}, ""
}

// plausibleToken checks length and, for JWT-shaped tokens, that the token
// decodes and has not expired. Signatures are not verified here.
func (uc *SessionUseCase) plausibleToken(token string) bool {
	if len(token) < uc.minTokenLength {
		return false
	}
	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.VerifyExpiresAt(uc.now().Unix(), false)
}

// setState swaps in next and notifies subscribers when the visible session
// changed. markInitialized completes initialization.
func (uc *SessionUseCase) setState(next entity.Session, markInitialized bool) {
	uc.mu.Lock()
	changed := !sameSession(uc.state, next)
	uc.state = next
	if markInitialized {
		uc.initialized = true
	}
	subs := make([]func(entity.Session), 0, len(uc.subscribers))
	for _, fn := range uc.subscribers {
		subs = append(subs, fn)
	}
	uc.mu.Unlock()

	if !changed {
		return
	}
	snapshot := copySession(next)
	for _, fn := range subs {
		fn(snapshot)
	}
}

func authenticated(identity *entity.Identity) entity.Session {
	return entity.Session{
		IsAuthenticated: true,
		Role:            identity.Role,
		Identity:        identity,
	}
}

func sameSession(a, b entity.Session) bool {
	if a.IsAuthenticated != b.IsAuthenticated || a.Role != b.Role {
		return false
	}
	if a.Identity == nil || b.Identity == nil {
		return a.Identity == b.Identity
	}
	return a.Identity.ID == b.Identity.ID &&
		a.Identity.Token == b.Identity.Token &&
		string(a.Identity.Profile) == string(b.Identity.Profile)
}

func copySession(s entity.Session) entity.Session {
	if s.Identity != nil {
		identity := *s.Identity
		s.Identity = &identity
	}
	return s
}
