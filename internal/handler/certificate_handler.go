package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type certificateService interface {
	List(ctx context.Context, ownerID string) ([]models.Certificate, error)
	ListForTeacher(ctx context.Context, search string) ([]models.TeacherCertificate, error)
	Upload(ctx context.Context, ownerID, title string, file service.FileUpload) (*models.Certificate, error)
	Delete(ctx context.Context, ownerID, id string) error
	RetryDelete(ctx context.Context, ownerID, id string) error
}

// CertificateHandler serves student certificate uploads and the teacher
// overview.
type CertificateHandler struct {
	service certificateService
}

func NewCertificateHandler(svc certificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// List godoc
// @Summary List my certificates
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Upload godoc
// @Summary Upload a certificate
// @Tags Certificates
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param file formData file true "Certificate file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Upload(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "title is required"))
		return
	}
	file, closer, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closer.Close() //nolint:errcheck

	cert, err := h.service.Upload(c.Request.Context(), ownerID, title, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// Delete godoc
// @Summary Delete a certificate
// @Description Removes the file, then the metadata. A 409 PARTIAL_DELETE reports which half succeeded; retry with POST /certificates/{id}/retry-delete.
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /certificates/{id} [delete]
func (h *CertificateHandler) Delete(c *gin.Context) {
	h.delete(c, h.service.Delete)
}

// RetryDelete godoc
// @Summary Finish a partial certificate delete
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/retry-delete [post]
func (h *CertificateHandler) RetryDelete(c *gin.Context) {
	h.delete(c, h.service.RetryDelete)
}

func (h *CertificateHandler) delete(c *gin.Context, run func(ctx context.Context, ownerID, id string) error) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := run(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TeacherList godoc
// @Summary All student certificates
// @Description Certificates with owner emails, newest first. search matches title, email or issued date.
// @Tags Teacher
// @Produce json
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /teacher/certificates [get]
func (h *CertificateHandler) TeacherList(c *gin.Context) {
	items, err := h.service.ListForTeacher(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
