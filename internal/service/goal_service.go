package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type goalRepository interface {
	List(ctx context.Context, q models.Query) ([]models.Goal, error)
	GetByID(ctx context.Context, id string) (*models.Goal, error)
	Create(ctx context.Context, g *models.Goal) error
	Update(ctx context.Context, g *models.Goal) error
	Delete(ctx context.Context, id string) error
}

// GoalService manages a student's goals.
type GoalService struct {
	repo      goalRepository
	validator *validator.Validate
	changes   ChangePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewGoalService(repo goalRepository, validate *validator.Validate, changes ChangePublisher, logger *zap.Logger) *GoalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GoalService{repo: repo, validator: validate, changes: changes, logger: logger, now: time.Now}
}

func (s *GoalService) List(ctx context.Context, ownerID string) ([]models.Goal, error) {
	q := models.Query{Collection: models.CollectionGoals}.Where("userId", models.OpEq, ownerID)
	goals, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list goals")
	}
	return goals, nil
}

// Create stores a goal. Priority defaults to Medium and status to Pending.
func (s *GoalService) Create(ctx context.Context, ownerID string, input models.GoalInput) (*models.Goal, error) {
	input = withGoalDefaults(input)
	if err := s.validate(input); err != nil {
		return nil, err
	}
	goal := &models.Goal{
		OwnerID:     ownerID,
		Title:       input.Title,
		Description: input.Description,
		TargetDate:  input.TargetDate,
		Priority:    input.Priority,
		Status:      input.Status,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, goal); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to save goal")
	}
	announce(ctx, s.changes, s.logger, models.CollectionGoals, models.ChangeInsert, goal.ID, ownerID)
	return goal, nil
}

func (s *GoalService) Update(ctx context.Context, ownerID, id string, input models.GoalInput) (*models.Goal, error) {
	input = withGoalDefaults(input)
	if err := s.validate(input); err != nil {
		return nil, err
	}
	goal, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	goal.Title = input.Title
	goal.Description = input.Description
	goal.TargetDate = input.TargetDate
	goal.Priority = input.Priority
	goal.Status = input.Status
	if err := s.repo.Update(ctx, goal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "goal not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to update goal")
	}
	announce(ctx, s.changes, s.logger, models.CollectionGoals, models.ChangeUpdate, goal.ID, ownerID)
	return goal, nil
}

func (s *GoalService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "goal not found")
		}
		return appErrors.WrapAs(appErrors.ErrWrite, err, "failed to delete goal")
	}
	announce(ctx, s.changes, s.logger, models.CollectionGoals, models.ChangeDelete, id, ownerID)
	return nil
}

func (s *GoalService) owned(ctx context.Context, ownerID, id string) (*models.Goal, error) {
	goal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "goal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load goal")
	}
	if goal.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "goal not found")
	}
	return goal, nil
}

func (s *GoalService) validate(input models.GoalInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid goal payload")
	}
	if input.TargetDate.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "targetDate is required")
	}
	return nil
}

func withGoalDefaults(input models.GoalInput) models.GoalInput {
	if input.Priority == "" {
		input.Priority = models.GoalPriorityMedium
	}
	if input.Status == "" {
		input.Status = models.GoalStatusPending
	}
	return input
}
