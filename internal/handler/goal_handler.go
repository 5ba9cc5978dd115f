package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/response"
)

type goalService interface {
	List(ctx context.Context, ownerID string) ([]models.Goal, error)
	Create(ctx context.Context, ownerID string, input models.GoalInput) (*models.Goal, error)
	Update(ctx context.Context, ownerID, id string, input models.GoalInput) (*models.Goal, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type GoalHandler struct {
	service goalService
}

func NewGoalHandler(svc goalService) *GoalHandler {
	return &GoalHandler{service: svc}
}

// goalView adds the derived progress percentage to a goal.
type goalView struct {
	models.Goal
	Progress int `json:"progress"`
}

func viewGoal(g models.Goal) goalView {
	return goalView{Goal: g, Progress: g.Status.Progress()}
}

// List godoc
// @Summary List goals
// @Tags Goals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /goals [get]
func (h *GoalHandler) List(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	goals, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, viewGoal(g))
	}
	response.OK(c, out)
}

// Create godoc
// @Summary Create a goal
// @Description Priority defaults to Medium and status to Pending
// @Tags Goals
// @Accept json
// @Produce json
// @Param payload body models.GoalInput true "Goal"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /goals [post]
func (h *GoalHandler) Create(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input models.GoalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid goal payload"))
		return
	}
	goal, err := h.service.Create(c.Request.Context(), ownerID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, viewGoal(*goal))
}

// Update godoc
// @Summary Update a goal
// @Tags Goals
// @Accept json
// @Produce json
// @Param id path string true "Goal ID"
// @Param payload body models.GoalInput true "Goal"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /goals/{id} [put]
func (h *GoalHandler) Update(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var input models.GoalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid goal payload"))
		return
	}
	goal, err := h.service.Update(c.Request.Context(), ownerID, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, viewGoal(*goal))
}

// Delete godoc
// @Summary Delete a goal
// @Tags Goals
// @Param id path string true "Goal ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /goals/{id} [delete]
func (h *GoalHandler) Delete(c *gin.Context) {
	ownerID, err := callerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
