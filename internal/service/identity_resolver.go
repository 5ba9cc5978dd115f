package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// IdentityProvider announces session changes.
type IdentityProvider interface {
	OnSessionChange(fn func(models.SessionEvent)) func()
}

// SessionSource attaches the profile role to an identity.
type SessionSource interface {
	SessionFor(ctx context.Context, identity models.Identity) (models.Session, error)
}

// IdentityResolver holds the current session of one connected client. It is
// the only writer of that session; readers and listeners get copies.
//
// The profile role is fetched once per sign-in session. Token refreshes of
// the same session reuse it.
type IdentityResolver struct {
	profiles     SessionSource
	logger       *zap.Logger
	fetchTimeout time.Duration

	notifyMu sync.Mutex

	mu        sync.Mutex
	session   *models.Session
	sessionID string
	gen       uint64
	roles     map[string]models.Role
	listeners map[int]func(*models.Session)
	nextID    int
	detach    func()
}

func NewIdentityResolver(provider IdentityProvider, profiles SessionSource, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &IdentityResolver{
		profiles:     profiles,
		logger:       logger,
		fetchTimeout: 5 * time.Second,
		roles:        make(map[string]models.Role),
		listeners:    make(map[int]func(*models.Session)),
	}
	if provider != nil {
		r.detach = provider.OnSessionChange(r.handleEvent)
	}
	return r
}

// Current returns a copy of the session, or nil when signed out.
func (r *IdentityResolver) Current() *models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySession(r.session)
}

// OnChange registers fn for every session change. Listeners run on the
// goroutine that caused the change, one at a time, and must not call SignIn,
// SignOut or Refresh themselves.
func (r *IdentityResolver) OnChange(fn func(*models.Session)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// SignIn binds the resolver to identity. The session is published at once
// with an unresolved role unless the role of this sign-in is already known,
// then again when the profile fetch completes. A failed fetch leaves the role
// unresolved and is only logged.
func (r *IdentityResolver) SignIn(ctx context.Context, identity models.Identity) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	role, known := r.roles[identity.SessionID]
	if r.sessionID != identity.SessionID {
		r.roles = make(map[string]models.Role)
		if known {
			r.roles[identity.SessionID] = role
		}
	}
	r.sessionID = identity.SessionID
	r.session = &models.Session{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: models.DisplayName(identity.DisplayName, identity.Email),
		Role:        role,
	}
	r.mu.Unlock()
	r.publish()

	if known {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	resolved, err := r.profiles.SessionFor(fetchCtx, identity)
	cancel()
	if err != nil {
		r.logger.Warn("profile fetch failed, role unresolved",
			zap.String("user_id", identity.UserID), zap.Error(err))
		return
	}

	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	r.roles[identity.SessionID] = resolved.Role
	r.session = &resolved
	r.mu.Unlock()
	r.publish()
}

// Refresh updates identity details after a token refresh without refetching
// the role.
func (r *IdentityResolver) Refresh(identity models.Identity) {
	r.mu.Lock()
	if r.session == nil || r.sessionID != identity.SessionID {
		r.mu.Unlock()
		return
	}
	next := *r.session
	if identity.Email != "" {
		next.Email = identity.Email
	}
	next.DisplayName = models.DisplayName(identity.DisplayName, next.Email)
	r.session = &next
	r.mu.Unlock()
	r.publish()
}

// SignOut clears the session.
func (r *IdentityResolver) SignOut() {
	r.mu.Lock()
	if r.session == nil {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.session = nil
	r.sessionID = ""
	r.roles = make(map[string]models.Role)
	r.mu.Unlock()
	r.publish()
}

// Close detaches from the identity provider.
func (r *IdentityResolver) Close() {
	r.mu.Lock()
	detach := r.detach
	r.detach = nil
	r.mu.Unlock()
	if detach != nil {
		detach()
	}
}

func (r *IdentityResolver) handleEvent(evt models.SessionEvent) {
	r.mu.Lock()
	bound := r.sessionID != "" && r.sessionID == evt.Identity.SessionID
	r.mu.Unlock()
	if !bound {
		return
	}
	switch evt.Kind {
	case models.SessionSignedOut:
		r.SignOut()
	case models.SessionTokenRefreshed:
		r.Refresh(evt.Identity)
	}
}

func (r *IdentityResolver) publish() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	current := r.session
	fns := make([]func(*models.Session), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(copySession(current))
	}
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
