package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/navigation"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// LiveObserver counts connected live clients.
type LiveObserver interface {
	LiveSessionConnected()
	LiveSessionDisconnected()
}

// LiveSessionDeps are the collaborators shared by every live session.
type LiveSessionDeps struct {
	Auth        tokenValidator
	Provider    IdentityProvider
	Profiles    SessionSource
	Composer    *ViewComposer
	Observer    LiveObserver
	Logger      *zap.Logger
	FrameBuffer int
}

// outboxLimit bounds the frames queued for a client that stopped reading.
const outboxLimit = 1024

// LiveSession drives one live channel client: it owns the client's identity
// resolver, routes its navigation and keeps its mounted views. Outgoing frames
// are read from Frames until Done is closed.
type LiveSession struct {
	deps     LiveSessionDeps
	logger   *zap.Logger
	resolver *IdentityResolver
	frames   chan dto.ServerFrame
	ctx      context.Context
	cancel   context.CancelFunc
	detach   func()
	once     sync.Once

	mu     sync.Mutex
	views  map[string]*View
	path   string
	outbox []dto.ServerFrame
	wake   chan struct{}
}

func NewLiveSession(ctx context.Context, deps LiveSessionDeps) *LiveSession {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.FrameBuffer <= 0 {
		deps.FrameBuffer = 32
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &LiveSession{
		deps:   deps,
		logger: deps.Logger,
		frames: make(chan dto.ServerFrame, deps.FrameBuffer),
		ctx:    ctx,
		cancel: cancel,
		views:  make(map[string]*View),
		path:   "/",
		wake:   make(chan struct{}, 1),
	}
	go s.writeLoop()
	s.resolver = NewIdentityResolver(deps.Provider, deps.Profiles, deps.Logger)
	s.detach = s.resolver.OnChange(s.onSessionChange)
	if deps.Observer != nil {
		deps.Observer.LiveSessionConnected()
	}
	return s
}

// Frames yields outgoing frames.
func (s *LiveSession) Frames() <-chan dto.ServerFrame { return s.frames }

// Done is closed by Close.
func (s *LiveSession) Done() <-chan struct{} { return s.ctx.Done() }

// Session returns a copy of the client's current session.
func (s *LiveSession) Session() *models.Session { return s.resolver.Current() }

// Handle processes one client frame. Failures are reported to the client as
// error frames and never end the session.
func (s *LiveSession) Handle(ctx context.Context, frame dto.ClientFrame) {
	var err error
	switch frame.Type {
	case dto.FrameAuth:
		err = s.Authenticate(ctx, frame.Token)
	case dto.FrameNavigate:
		s.Navigate(frame.RequestID, frame.Path)
	case dto.FrameMount:
		err = s.mount(frame)
	case dto.FrameUnmount:
		err = s.Unmount(frame.RequestID, frame.ViewID)
	case dto.FrameRetry:
		err = s.retry(frame)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "unknown frame type")
	}
	if err != nil {
		s.emitError(frame.RequestID, err)
	}
}

// Authenticate signs the client in with an access token. The session and
// route frames follow through the resolver.
func (s *LiveSession) Authenticate(ctx context.Context, token string) error {
	claims, err := s.deps.Auth.ValidateToken(token)
	if err != nil {
		return appErrors.WrapAs(appErrors.ErrAuth, err, "invalid access token")
	}
	if claims.SessionID != "" {
		active, err := s.deps.Auth.SessionActive(ctx, claims.SessionID)
		if err != nil {
			return appErrors.WrapAs(appErrors.ErrAuth, err, "unable to verify session")
		}
		if !active {
			return appErrors.Clone(appErrors.ErrAuth, "session has ended")
		}
	}
	s.resolver.SignIn(ctx, claims.Identity())
	return nil
}

// SignOut clears the client's session.
func (s *LiveSession) SignOut() { s.resolver.SignOut() }

// Navigate resolves path for the current session and emits the decision.
func (s *LiveSession) Navigate(requestID, path string) navigation.Decision {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	decision := navigation.Resolve(s.resolver.Current(), path)
	s.emit(dto.ServerFrame{Type: dto.FrameRoute, RequestID: requestID, Payload: decision})
	return decision
}

// Mount mounts screen for the current session and starts streaming its
// states as snapshot frames.
func (s *LiveSession) Mount(requestID string, screen Screen) (string, error) {
	session := s.resolver.Current()
	if session == nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "sign in first")
	}
	view, err := s.deps.Composer.Mount(s.ctx, *session, screen)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	current := s.resolver.Current()
	if current == nil || current.UserID != session.UserID || current.Role != session.Role {
		s.mu.Unlock()
		view.Unmount()
		return "", appErrors.Clone(appErrors.ErrConflict, "session changed while mounting")
	}
	s.views[view.ID()] = view
	s.mu.Unlock()

	s.emit(dto.ServerFrame{Type: dto.FrameView, RequestID: requestID, Payload: dto.ViewEvent{
		ViewID: view.ID(),
		Screen: string(screen),
		Status: dto.ViewMounted,
	}})
	go s.forward(view)
	return view.ID(), nil
}

// Unmount releases a mounted view.
func (s *LiveSession) Unmount(requestID, viewID string) error {
	s.mu.Lock()
	view, ok := s.views[viewID]
	delete(s.views, viewID)
	s.dropQueuedLocked(viewID)
	s.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "view not mounted")
	}
	view.Unmount()
	s.emit(dto.ServerFrame{Type: dto.FrameView, RequestID: requestID, Payload: dto.ViewEvent{
		ViewID: viewID,
		Screen: string(view.Screen()),
		Status: dto.ViewUnmounted,
	}})
	return nil
}

// Views lists the ids of mounted views.
func (s *LiveSession) Views() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.views))
	for id := range s.views {
		ids = append(ids, id)
	}
	return ids
}

// Close unmounts every view and detaches from the identity provider. It is
// safe to call more than once.
func (s *LiveSession) Close() {
	s.once.Do(func() {
		s.cancel()
		s.detach()
		s.resolver.Close()
		views := s.takeViews(func(*View) bool { return true })
		for _, v := range views {
			v.Unmount()
		}
		if s.deps.Observer != nil {
			s.deps.Observer.LiveSessionDisconnected()
		}
	})
}

func (s *LiveSession) mount(frame dto.ClientFrame) error {
	screen := Screen(frame.Screen)
	if screen == "" && frame.Path != "" {
		found, ok := ScreenForPath(frame.Path)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, "no screen at path")
		}
		screen = found
	}
	_, err := s.Mount(frame.RequestID, screen)
	return err
}

func (s *LiveSession) retry(frame dto.ClientFrame) error {
	s.mu.Lock()
	view, ok := s.views[frame.ViewID]
	s.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "view not mounted")
	}
	view.Retry(models.Collection(frame.Collection))
	return nil
}

// onSessionChange drops every view bound to a different user or role, then
// reports the new session and re-resolves the current path.
func (s *LiveSession) onSessionChange(session *models.Session) {
	stale := s.takeViews(func(v *View) bool {
		bound := v.Session()
		return session == nil || bound.UserID != session.UserID || bound.Role != session.Role
	})
	for _, v := range stale {
		v.Unmount()
		s.emit(dto.ServerFrame{Type: dto.FrameView, Payload: dto.ViewEvent{
			ViewID: v.ID(),
			Screen: string(v.Screen()),
			Status: dto.ViewUnmounted,
			Reason: "session_changed",
		}})
	}

	s.emit(dto.ServerFrame{Type: dto.FrameSession, Payload: dto.SessionPayload{Session: session}})

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()
	s.emit(dto.ServerFrame{Type: dto.FrameRoute, Payload: navigation.Resolve(session, path)})
}

// takeViews removes and returns the views matching drop. Once removed a view
// can no longer emit frames.
func (s *LiveSession) takeViews(drop func(*View) bool) []*View {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*View
	for id, v := range s.views {
		if drop(v) {
			out = append(out, v)
			delete(s.views, id)
			s.dropQueuedLocked(id)
		}
	}
	return out
}

func (s *LiveSession) forward(v *View) {
	for {
		state, err := v.Next(s.ctx)
		if err != nil {
			if !errors.Is(err, ErrViewUnmounted) && !errors.Is(err, context.Canceled) {
				s.logger.Warn("view stream ended", zap.String("view_id", v.ID()), zap.Error(err))
			}
			return
		}
		if !s.emitFromView(v, state) {
			return
		}
	}
}

// emitFromView queues a view state only while the view is still mounted in
// this session.
func (s *LiveSession) emitFromView(v *View, state dto.ViewState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.views[v.ID()] != v {
		return false
	}
	s.enqueueLocked(dto.ServerFrame{Type: dto.FrameSnapshot, Payload: state})
	return true
}

// emit queues frame for the writer and never blocks on the client.
func (s *LiveSession) emit(frame dto.ServerFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(frame)
}

func (s *LiveSession) emitError(requestID string, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= 500 {
		s.logger.Error("live frame failed", zap.String("code", appErr.Code), zap.Error(err))
	}
	s.emit(dto.ServerFrame{Type: dto.FrameError, RequestID: requestID, Error: appErr})
}

// enqueueLocked appends frame to the outbox. A snapshot replaces the queued
// snapshot of the same view. Requires s.mu.
func (s *LiveSession) enqueueLocked(frame dto.ServerFrame) {
	if state, ok := frame.Payload.(dto.ViewState); ok && frame.Type == dto.FrameSnapshot {
		for i, queued := range s.outbox {
			if q, ok := queued.Payload.(dto.ViewState); ok && queued.Type == dto.FrameSnapshot && q.ViewID == state.ViewID {
				s.outbox[i] = frame
				s.signal()
				return
			}
		}
	}
	if len(s.outbox) >= outboxLimit {
		s.logger.Warn("live client stopped reading, closing session", zap.Int("queued", len(s.outbox)))
		s.cancel()
		return
	}
	s.outbox = append(s.outbox, frame)
	s.signal()
}

// dropQueuedLocked discards queued snapshots of viewID. Requires s.mu.
func (s *LiveSession) dropQueuedLocked(viewID string) {
	kept := s.outbox[:0]
	for _, queued := range s.outbox {
		if q, ok := queued.Payload.(dto.ViewState); ok && queued.Type == dto.FrameSnapshot && q.ViewID == viewID {
			continue
		}
		kept = append(kept, queued)
	}
	for i := len(kept); i < len(s.outbox); i++ {
		s.outbox[i] = dto.ServerFrame{}
	}
	s.outbox = kept
}

func (s *LiveSession) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// writeLoop is the only sender on s.frames. It delivers the outbox in order.
func (s *LiveSession) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.outbox) == 0 {
				s.mu.Unlock()
				break
			}
			frame := s.outbox[0]
			s.outbox[0] = dto.ServerFrame{}
			s.outbox = s.outbox[1:]
			s.mu.Unlock()

			select {
			case s.frames <- frame:
			case <-s.ctx.Done():
				return
			}
		}
	}
}
