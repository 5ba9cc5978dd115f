package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/repository"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type mockAuthRepo struct {
	mu               sync.Mutex
	users            map[string]*models.User
	createErr        error
	refreshTokens    map[string]*models.RefreshToken
	revokedSessions  map[string]bool
	createRefreshErr error
	auditLogs        []*models.AuditLog
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{
		users:           make(map[string]*models.User),
		refreshTokens:   make(map[string]*models.RefreshToken),
		revokedSessions: make(map[string]bool),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = "user-" + user.Email
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeSession(_ context.Context, sessionID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedSessions[sessionID] = true
	return nil
}

func (m *mockAuthRepo) SessionActive(_ context.Context, sessionID string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.revokedSessions[sessionID], nil
}

func (m *mockAuthRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockAuthRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.auditLogs))
	for _, l := range m.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "scholarbridge-test",
	})
}

func recordEvents(svc *AuthService) (func() []models.SessionEvent, func()) {
	var mu sync.Mutex
	var events []models.SessionEvent
	stop := svc.OnSessionChange(func(evt models.SessionEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})
	return func() []models.SessionEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]models.SessionEvent(nil), events...)
	}, stop
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)
	events, stop := recordEvents(svc)
	defer stop()

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "password", Role: "Student"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleStudent, res.Session.Role)
	assert.Equal(t, "ana", res.Session.DisplayName)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.UserID)
	assert.NotEmpty(t, claims.SessionID)

	active, err := svc.SessionActive(context.Background(), claims.SessionID)
	require.NoError(t, err)
	assert.True(t, active)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, models.SessionSignedIn, got[0].Kind)
	assert.Equal(t, claims.SessionID, got[0].Identity.SessionID)
	assert.Equal(t, []string{models.AuditActionLogin}, repo.actions())
}

func TestAuthServiceLoginInvalidCredentials(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginRoleMismatchSignsOut(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "tch-1", Email: "budi@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleTeacher})
	svc := newTestAuthService(repo)
	events, stop := recordEvents(svc)
	defer stop()

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "budi@school.test", Password: "password", Role: models.RoleStudent})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, appErrors.ErrRoleMismatch))

	got := events()
	require.Len(t, got, 2)
	assert.Equal(t, models.SessionSignedIn, got[0].Kind)
	assert.Equal(t, models.SessionSignedOut, got[1].Kind)
	assert.Equal(t, got[0].Identity.SessionID, got[1].Identity.SessionID)

	active, err := svc.SessionActive(context.Background(), got[0].Identity.SessionID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Contains(t, repo.actions(), models.AuditActionLoginRejected)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "citra@school.test", Password: "secret1", Role: "TEACHER"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, res.Session.Role)
	assert.Equal(t, "citra", res.Session.DisplayName)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "citra@school.test", Password: "secret1", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "dodi@school.test", Password: "secret1", Role: "admin"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRefreshKeepsSession(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "password"})
	require.NoError(t, err)
	first, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)

	events, stop := recordEvents(svc)
	defer stop()
	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	second, err := svc.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, events(), 1)
	assert.Equal(t, models.SessionTokenRefreshed, events()[0].Kind)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutEndsSession(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "password"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "stu-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "stu-1"))
	active, err := svc.SessionActive(context.Background(), claims.SessionID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	issuer := newTestAuthService(repo)
	login, err := issuer.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "password"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(login.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "stu-1", Email: "ana@school.test", PasswordHash: hashed(t, "password"), Role: models.RoleStudent})
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "stu-1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpass"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.ChangePassword(context.Background(), "stu-1", models.ChangePasswordRequest{OldPassword: "password", NewPassword: "newpass"}))
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@school.test", Password: "newpass"})
	assert.NoError(t, err)
}
