package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, ownerID string) dto.DashboardSummary
}

// DashboardHandler serves the one-shot student dashboard summary.
type DashboardHandler struct {
	service dashboardService
}

func NewDashboardHandler(svc dashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Student dashboard summary
// @Description Counts, activity mix, recent activities, goal progress and upcoming events. Sections that failed to load are listed in pending.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary := h.service.Summary(c.Request.Context(), ownerID)
	meta := map[string]interface{}{}
	if len(summary.Pending) > 0 {
		meta["partial"] = true
	}
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
