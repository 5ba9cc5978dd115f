package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/middleware"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/navigation"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// asUser fakes the JWT middleware.
func asUser(userID string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role, SessionID: "sid-" + userID})
		c.Next()
	}
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
	Meta  map[string]any   `json:"meta"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

type activityServiceStub struct {
	deleted []string
}

func (s *activityServiceStub) List(context.Context, string) ([]models.Activity, error) {
	return []models.Activity{{ID: "a1"}, {ID: "a2"}}, nil
}

func (s *activityServiceStub) Create(_ context.Context, owner string, input models.ActivityInput) (*models.Activity, error) {
	return &models.Activity{ID: "new", OwnerID: owner, Title: input.Title}, nil
}

func (s *activityServiceStub) Update(_ context.Context, owner, id string, input models.ActivityInput) (*models.Activity, error) {
	return &models.Activity{ID: id, OwnerID: owner, Title: input.Title}, nil
}

func (s *activityServiceStub) Delete(_ context.Context, _, id string, confirmed bool) error {
	if !confirmed {
		return appErrors.Clone(appErrors.ErrValidation, "deletion must be confirmed")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type exporterStub struct{ format string }

func (s *exporterStub) ExportActivities(_ context.Context, _, format string) (*service.ExportFile, error) {
	s.format = format
	if format == "xml" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportFile{Name: "activity-records-20240105.csv", ContentType: "text/csv", Data: []byte("Date,Type\n")}, nil
}

func activityRouter(svc *activityServiceStub, exp *exporterStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewActivityHandler(svc, exp)
	r := gin.New()
	r.Use(asUser("stu-1", models.RoleStudent))
	r.GET("/activities", h.List)
	r.GET("/activities/export", h.Export)
	r.DELETE("/activities/:id", h.Delete)
	return r
}

func TestActivityHandlerDeleteRequiresConfirm(t *testing.T) {
	svc := &activityServiceStub{}
	r := activityRouter(svc, &exporterStub{})

	req, _ := http.NewRequest(http.MethodDelete, "/activities/a1", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, resp.Body.Bytes()).Error.Code)
	assert.Empty(t, svc.deleted)

	req, _ = http.NewRequest(http.MethodDelete, "/activities/a1?confirm=true", nil)
	resp = performRequest(r, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, []string{"a1"}, svc.deleted)
}

func TestActivityHandlerListAndExport(t *testing.T) {
	exp := &exporterStub{}
	r := activityRouter(&activityServiceStub{}, exp)

	req, _ := http.NewRequest(http.MethodGet, "/activities", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total_count":2`)

	req, _ = http.NewRequest(http.MethodGet, "/activities/export?format=csv", nil)
	resp = performRequest(r, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "csv", exp.format)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "activity-records-20240105.csv")
	assert.Equal(t, "Date,Type\n", resp.Body.String())

	req, _ = http.NewRequest(http.MethodGet, "/activities/export?format=xml", nil)
	resp = performRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestActivityHandlerRequiresCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/activities", nil)

	NewActivityHandler(&activityServiceStub{}, &exporterStub{}).List(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type certificateServiceStub struct {
	deleteErr error
	retried   bool
	search    string
}

func (s *certificateServiceStub) List(context.Context, string) ([]models.Certificate, error) {
	return nil, nil
}

func (s *certificateServiceStub) ListForTeacher(_ context.Context, search string) ([]models.TeacherCertificate, error) {
	s.search = search
	return []models.TeacherCertificate{}, nil
}

func (s *certificateServiceStub) Upload(context.Context, string, string, service.FileUpload) (*models.Certificate, error) {
	return nil, errors.New("not used")
}

func (s *certificateServiceStub) Delete(context.Context, string, string) error { return s.deleteErr }

func (s *certificateServiceStub) RetryDelete(context.Context, string, string) error {
	s.retried = true
	return nil
}

type auditRecorderStub struct{ logs []*models.AuditLog }

func (s *auditRecorderStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestCertificateHandlerPartialDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &certificateServiceStub{deleteErr: &appErrors.PartialDeleteError{
		Resource:    "certificate",
		ID:          "c1",
		BlobDeleted: true,
		Err:         errors.New("db down"),
	}}
	h := NewCertificateHandler(svc)
	r := gin.New()
	r.Use(asUser("stu-1", models.RoleStudent))
	audit := &auditRecorderStub{}
	r.DELETE("/certificates/:id", middleware.Audit(audit, nil, models.AuditActionDelete, "certificate"), h.Delete)
	r.POST("/certificates/:id/retry-delete", h.RetryDelete)
	r.GET("/teacher/certificates", h.TeacherList)

	req, _ := http.NewRequest(http.MethodDelete, "/certificates/c1", nil)
	resp := performRequest(r, req)
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Empty(t, audit.logs)
	env := decodeEnvelope(t, resp.Body.Bytes())
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrPartialDelete.Code, env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, details["blobDeleted"])
	assert.Equal(t, false, details["metadataDeleted"])

	req, _ = http.NewRequest(http.MethodPost, "/certificates/c1/retry-delete", nil)
	resp = performRequest(r, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.True(t, svc.retried)

	req, _ = http.NewRequest(http.MethodGet, "/teacher/certificates?search=2024", nil)
	resp = performRequest(r, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "2024", svc.search)
}

type authServiceStub struct {
	loginErr error
}

func (s authServiceStub) Register(context.Context, models.RegisterRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{}, nil
}

func (s authServiceStub) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &models.LoginResponse{}, nil
}

func (s authServiceStub) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{}, nil
}

func (s authServiceStub) Logout(context.Context, string, string) error { return nil }

func (s authServiceStub) ChangePassword(context.Context, string, models.ChangePasswordRequest) error {
	return nil
}

func TestAuthHandlerLoginRoleMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(authServiceStub{loginErr: appErrors.ErrRoleMismatch}, nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	body := bytes.NewBufferString(`{"email":"t@example.com","password":"secret123","role":"student"}`)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(r, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, appErrors.ErrRoleMismatch.Code, decodeEnvelope(t, resp.Body.Bytes()).Error.Code)

	req, _ = http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp = performRequest(r, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type verifierStub struct {
	claims   map[string]*models.JWTClaims
	inactive map[string]bool
}

func (v verifierStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func (v verifierStub) SessionActive(_ context.Context, sid string) (bool, error) {
	return !v.inactive[sid], nil
}

type sessionsStub map[string]models.Role

func (s sessionsStub) SessionFor(_ context.Context, id models.Identity) (models.Session, error) {
	role, ok := s[id.UserID]
	if !ok {
		return models.Session{UserID: id.UserID}, appErrors.ErrProfileFetch
	}
	return models.Session{UserID: id.UserID, Email: id.Email, Role: role}, nil
}

func TestNavigationHandlerResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := verifierStub{
		claims: map[string]*models.JWTClaims{
			"stu":     {UserID: "stu-1", SessionID: "s1"},
			"tch":     {UserID: "tch-1", SessionID: "t1"},
			"ghost":   {UserID: "ghost", SessionID: "g1"},
			"expired": {UserID: "stu-1", SessionID: "old"},
		},
		inactive: map[string]bool{"old": true},
	}
	sessions := sessionsStub{"stu-1": models.RoleStudent, "tch-1": models.RoleTeacher}
	h := NewNavigationHandler(sessions, verifier)
	r := gin.New()
	r.GET("/navigation/resolve", h.Resolve)

	tests := []struct {
		name  string
		token string
		path  string
		state navigation.State
		want  string
	}{
		{"anonymous", "", "/goals", navigation.StateUnauthenticated, navigation.PathLogin},
		{"student allowed", "stu", "/goals", navigation.StateStudent, navigation.PathGoals},
		{"teacher redirected", "tch", "/goals", navigation.StateTeacher, navigation.PathTeacherCerts},
		{"profile unavailable", "ghost", "/goals", navigation.StateRoleUnresolved, navigation.PathLoading},
		{"ended session", "expired", "/goals", navigation.StateUnauthenticated, navigation.PathLogin},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/navigation/resolve?path="+tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp := performRequest(r, req)
			require.Equal(t, http.StatusOK, resp.Code)

			var decision navigation.Decision
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp.Body.Bytes()).Data, &decision))
			assert.Equal(t, tc.state, decision.State)
			assert.Equal(t, tc.want, decision.Path)
		})
	}
}

type openerStub struct{ path string }

func (o openerStub) OpenToken(_ context.Context, token string) (*os.File, string, error) {
	if token != "good" {
		return nil, "", errors.New("bad signature")
	}
	f, err := os.Open(o.path)
	return f, "certificates/stu-1/cert.pdf", err
}

func TestFileHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := t.TempDir() + "/blob"
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	h := NewFileHandler(openerStub{path: path}, nil)
	r := gin.New()
	r.GET("/files/:token", h.Download)

	req, _ := http.NewRequest(http.MethodGet, "/files/bad", nil)
	resp := performRequest(r, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	req, _ = http.NewRequest(http.MethodGet, "/files/good", nil)
	resp = performRequest(r, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "cert.pdf")
	assert.Equal(t, "%PDF-1.4", resp.Body.String())
}

func TestHealthHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewHealthHandler(nil, map[string]Pinger{"postgres": ok}).Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewHealthHandler(nil, map[string]Pinger{"postgres": ok, "redis": down}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
	assert.Contains(t, w.Body.String(), "connection refused")
}
