package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/logger"
)

type verifierStub struct {
	claims map[string]*models.JWTClaims
	ended  map[string]bool
}

func (v verifierStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func (v verifierStub) SessionActive(_ context.Context, sessionID string) (bool, error) {
	if sessionID == "broken" {
		return false, errors.New("db down")
	}
	return !v.ended[sessionID], nil
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(_, path string, _ int, _ time.Duration) {
	o.paths = append(o.paths, path)
}

func testRouter(verifier TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("/", JWT(verifier))
	protected.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.UserIDKey))
	})
	protected.GET("/teacher", RequireRoles(models.RoleTeacher), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	verifier := verifierStub{
		claims: map[string]*models.JWTClaims{
			"good":   {UserID: "stu-1", Role: models.RoleStudent, SessionID: "s1"},
			"ended":  {UserID: "stu-1", Role: models.RoleStudent, SessionID: "s0"},
			"broken": {UserID: "stu-1", Role: models.RoleStudent, SessionID: "broken"},
		},
		ended: map[string]bool{"s0": true},
	}
	r := testRouter(verifier)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"signed out", "Bearer ended", http.StatusUnauthorized},
		{"session lookup fails", "Bearer broken", http.StatusInternalServerError},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "stu-1", w.Body.String())
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	verifier := verifierStub{claims: map[string]*models.JWTClaims{
		"stu": {UserID: "stu-1", Role: models.RoleStudent, SessionID: "s1"},
		"tch": {UserID: "tch-1", Role: models.RoleTeacher, SessionID: "s2"},
	}}
	r := testRouter(verifier)

	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.Header.Set("Authorization", "Bearer stu")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	req = httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.Header.Set("Authorization", "Bearer tch")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &auditStub{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "stu-1"})
		c.Next()
	})
	r.DELETE("/activities/:id", Audit(recorder, nil, models.AuditActionDelete, "activity"), func(c *gin.Context) {
		if c.Param("id") == "bad" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	for _, id := range []string{"a1", "bad"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/activities/"+id, nil))
	}

	require.Len(t, recorder.logs, 1)
	log := recorder.logs[0]
	assert.Equal(t, models.AuditActionDelete, log.Action)
	assert.Equal(t, "stu-1", *log.UserID)
	assert.Equal(t, "a1", *log.ResourceID)
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/goals/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/goals/g1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, []string{"/goals/:id", "unmatched"}, observer.paths)
}
