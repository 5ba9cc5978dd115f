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

type achievementService interface {
	List(ctx context.Context, search string) ([]models.Achievement, error)
	Create(ctx context.Context, input models.AchievementInput, file service.FileUpload) (*models.Achievement, error)
}

type AchievementHandler struct {
	service achievementService
}

func NewAchievementHandler(svc achievementService) *AchievementHandler {
	return &AchievementHandler{service: svc}
}

// List godoc
// @Summary List achievements
// @Description Newest first; search matches title, student name and description
// @Tags Achievements
// @Produce json
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /achievements [get]
func (h *AchievementHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Upload an achievement
// @Tags Achievements
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param studentName formData string true "Student name"
// @Param description formData string false "Description"
// @Param date formData string false "Date (YYYY-MM-DD), defaults to today"
// @Param file formData file true "Proof file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /achievements [post]
func (h *AchievementHandler) Create(c *gin.Context) {
	var input models.AchievementInput
	if err := c.ShouldBind(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid achievement payload"))
		return
	}
	if raw := strings.TrimSpace(c.PostForm("date")); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		input.Date = date
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		input.Description = nil
	}

	file, closer, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closer.Close() //nolint:errcheck

	item, err := h.service.Create(c.Request.Context(), input, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}
