package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type tokenOpener interface {
	OpenToken(ctx context.Context, token string) (*os.File, string, error)
}

// FileHandler streams blobs behind signed download links.
type FileHandler struct {
	blobs  tokenOpener
	logger *zap.Logger
}

func NewFileHandler(blobs tokenOpener, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{blobs: blobs, logger: logger}
}

// Download godoc
// @Summary Download a stored file
// @Description The token comes from a fileUrl returned by the certificate or achievement endpoints
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, objectPath, err := h.blobs.OpenToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.logger.Debug("file token rejected", zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found or link expired"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	name := path.Base(objectPath)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", name))
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
