package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type eventService interface {
	List(ctx context.Context, upcomingOnly bool) ([]models.Event, error)
	Create(ctx context.Context, input models.EventInput) (*models.Event, error)
}

type EventHandler struct {
	service eventService
}

func NewEventHandler(svc eventService) *EventHandler {
	return &EventHandler{service: svc}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param upcoming query bool false "Only events dated today or later"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	upcoming, _ := strconv.ParseBool(c.Query("upcoming"))
	items, err := h.service.List(c.Request.Context(), upcoming)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Post an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body models.EventInput true "Event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var input models.EventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}
