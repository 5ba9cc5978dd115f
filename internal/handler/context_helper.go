package handler

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/middleware"
	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// callerID returns the authenticated user id or an UNAUTHORIZED error.
func callerID(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.UserID, nil
}

// sessionResolver maps a caller identity to its session with the profile role.
type sessionResolver interface {
	SessionFor(ctx context.Context, identity models.Identity) (models.Session, error)
}

// uploadFromForm opens the "file" part of a multipart request. The caller
// closes the returned closer.
func uploadFromForm(c *gin.Context) (service.FileUpload, io.Closer, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := header.Open()
	if err != nil {
		return service.FileUpload{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return service.FileUpload{
		Reader:   src,
		FileName: header.Filename,
		MimeType: detectMIME(header),
		Size:     header.Size,
	}, src, nil
}

func detectMIME(header *multipart.FileHeader) string {
	mime := strings.TrimSpace(header.Header.Get("Content-Type"))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return strings.ToLower(mime)
}
