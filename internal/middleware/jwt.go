package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/logger"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenVerifier validates access tokens and the sign-in behind them.
type TokenVerifier interface {
	ValidateToken(token string) (*models.JWTClaims, error)
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// JWT protects routes by requiring a valid access token whose session has not
// been signed out.
func JWT(auth TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.AbortError(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing or invalid authorization header"))
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		active, err := auth.SessionActive(c.Request.Context(), claims.SessionID)
		if err != nil {
			response.AbortError(c, appErrors.WrapAs(appErrors.ErrInternal, err, "unable to verify session"))
			return
		}
		if !active {
			response.AbortError(c, appErrors.Clone(appErrors.ErrUnauthorized, "session has ended"))
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.UserIDKey, claims.UserID)
		c.Next()
	}
}

// CurrentClaims returns the claims stored by JWT.
func CurrentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token of a "Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
