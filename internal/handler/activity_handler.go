package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	"github.com/noah-isme/scholarbridge-api/internal/service"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, ownerID string) ([]models.Activity, error)
	Create(ctx context.Context, ownerID string, input models.ActivityInput) (*models.Activity, error)
	Update(ctx context.Context, ownerID, id string, input models.ActivityInput) (*models.Activity, error)
	Delete(ctx context.Context, ownerID, id string, confirmed bool) error
}

type activityExporter interface {
	ExportActivities(ctx context.Context, ownerID, format string) (*service.ExportFile, error)
}

// ActivityHandler serves a student's activity records.
type ActivityHandler struct {
	service  activityService
	exporter activityExporter
}

func NewActivityHandler(svc activityService, exporter activityExporter) *ActivityHandler {
	return &ActivityHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List activity records
// @Tags Activities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
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
	response.JSON(c, http.StatusOK, items, &models.Pagination{Page: 1, PageSize: len(items), TotalCount: len(items)})
}

// Create godoc
// @Summary Log an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body models.ActivityInput true "Activity"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input models.ActivityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), ownerID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Edit an activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body models.ActivityInput true "Activity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input models.ActivityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), ownerID, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete an activity
// @Description Requires confirm=true
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Param confirm query bool true "Confirm deletion"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.service.Delete(c.Request.Context(), ownerID, c.Param("id"), confirmed); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export activity records
// @Tags Activities
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /activities/export [get]
func (h *ActivityHandler) Export(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportActivities(c.Request.Context(), ownerID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Name))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
