package usecase

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/domain/repository"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// Backend is everything a portal needs from the rental backend.
type Backend interface {
	MessageService
	DirectoryService
	AuthService
}

// portalPaths maps a portal name to the rendering context it stands for.
var portalPaths = map[string]string{
	"root":     "/",
	"user":     "/user",
	"merchant": "/merchant",
	"admin":    "/admin",
}

// Portal is one rendering context: its own session, unread engine and
// conversation view over the storage shared by every portal.
type Portal struct {
	Name          string
	Session       *SessionUseCase
	Auth          *AuthUseCase
	Unread        *UnreadUseCase
	Conversations *ConversationUseCase
}

func (p *Portal) close() {
	p.Unread.Close()
	p.Session.Teardown()
}

type PortalDeps struct {
	Identities     repository.IdentityRepository
	RateLimiter    *ratelimit.RateLimiter
	MinTokenLength int
	PollInterval   time.Duration
	ReconcileDelay time.Duration
	// Backend binds the rental backend to one session, so requests carry
	// its token and a rejected token clears it.
	Backend func(session *SessionUseCase) Backend
}

type PortalRegistry struct {
	deps PortalDeps

	mu      sync.Mutex
	portals map[string]*Portal
	closed  bool
}

func NewPortalRegistry(deps PortalDeps) *PortalRegistry {
	return &PortalRegistry{
		deps:    deps,
		portals: make(map[string]*Portal),
	}
}

func PortalNames() []string {
	names := make([]string, 0, len(portalPaths))
	for name := range portalPaths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named portal, creating and initializing it on first use.
func (r *PortalRegistry) Get(ctx context.Context, name string) (*Portal, error) {
	path, ok := portalPaths[name]
	if !ok {
		return nil, errors.NotFound("Portal", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New(errors.CodeInternal, "Portal registry is closed", http.StatusServiceUnavailable, nil)
	}
	if p, ok := r.portals[name]; ok {
		return p, nil
	}

	session := NewSessionUseCase(r.deps.Identities, r.deps.MinTokenLength)
	session.Navigate(path)
	backend := r.deps.Backend(session)

	unread := NewUnreadUseCase(session, backend, r.deps.PollInterval, r.deps.ReconcileDelay)
	unread.Start()

	if session.Initialize(context.WithoutCancel(ctx), entity.Role("")) {
		logger.Info("Portal %s resumed session for %s", name, session.Current().Role)
	}

	p := &Portal{
		Name:          name,
		Session:       session,
		Auth:          NewAuthUseCase(backend, session, r.deps.RateLimiter),
		Unread:        unread,
		Conversations: NewConversationUseCase(session, backend, backend, unread, r.deps.RateLimiter),
	}
	r.portals[name] = p
	return p, nil
}

// Active returns the names of the portals created so far.
func (r *PortalRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.portals))
	for name := range r.portals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close tears every portal down. Persisted identities are kept.
func (r *PortalRegistry) Close() {
	r.mu.Lock()
	portals := r.portals
	r.portals = make(map[string]*Portal)
	r.closed = true
	r.mu.Unlock()

	for _, p := range portals {
		p.close()
	}
}
