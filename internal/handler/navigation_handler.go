package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/middleware"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/navigation"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

// NavigationHandler exposes the role router to clients that are not on the
// live channel.
type NavigationHandler struct {
	sessions sessionResolver
	verifier middleware.TokenVerifier
}

func NewNavigationHandler(sessions sessionResolver, verifier middleware.TokenVerifier) *NavigationHandler {
	return &NavigationHandler{sessions: sessions, verifier: verifier}
}

// Resolve godoc
// @Summary Resolve a route
// @Description Decide where the caller lands for path. Works without a token (unauthenticated state).
// @Tags Navigation
// @Produce json
// @Param path query string false "Requested path" default(/)
// @Success 200 {object} response.Envelope
// @Router /navigation/resolve [get]
func (h *NavigationHandler) Resolve(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	response.OK(c, navigation.Resolve(h.session(c), path))
}

// session is nil for anonymous callers and carries an unresolved role when
// the profile cannot be read.
func (h *NavigationHandler) session(c *gin.Context) *models.Session {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok || h.verifier == nil {
		return nil
	}
	claims, err := h.verifier.ValidateToken(token)
	if err != nil {
		return nil
	}
	if active, err := h.verifier.SessionActive(c.Request.Context(), claims.SessionID); err != nil || !active {
		return nil
	}
	session, err := h.sessions.SessionFor(c.Request.Context(), claims.Identity())
	if err != nil {
		session.Role = models.RoleUnresolved
	}
	return &session
}
