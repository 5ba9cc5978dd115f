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

type activityRepository interface {
	List(ctx context.Context, q models.Query) ([]models.Activity, error)
	GetByID(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, a *models.Activity) error
	Update(ctx context.Context, a *models.Activity) error
	Delete(ctx context.Context, id string) error
}

// ActivityService manages a student's activity records.
type ActivityService struct {
	repo      activityRepository
	validator *validator.Validate
	changes   ChangePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewActivityService(repo activityRepository, validate *validator.Validate, changes ChangePublisher, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ActivityService{repo: repo, validator: validate, changes: changes, logger: logger, now: time.Now}
}

// List returns the owner's activities, newest first.
func (s *ActivityService) List(ctx context.Context, ownerID string) ([]models.Activity, error) {
	q := models.Query{Collection: models.CollectionActivities}.
		Where("userId", models.OpEq, ownerID).
		OrderBy("createdAt", true)
	items, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	return items, nil
}

func (s *ActivityService) Create(ctx context.Context, ownerID string, input models.ActivityInput) (*models.Activity, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	activity := &models.Activity{
		OwnerID:     ownerID,
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		Date:        input.Date,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to save activity")
	}
	announce(ctx, s.changes, s.logger, models.CollectionActivities, models.ChangeInsert, activity.ID, ownerID)
	return activity, nil
}

// Update edits an activity owned by ownerID. Title and date are required.
func (s *ActivityService) Update(ctx context.Context, ownerID, id string, input models.ActivityInput) (*models.Activity, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	activity, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	activity.Type = input.Type
	activity.Title = input.Title
	activity.Description = input.Description
	activity.Date = input.Date
	if err := s.repo.Update(ctx, activity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to update activity")
	}
	announce(ctx, s.changes, s.logger, models.CollectionActivities, models.ChangeUpdate, activity.ID, ownerID)
	return activity, nil
}

// Delete removes an activity. The caller must confirm the delete explicitly.
func (s *ActivityService) Delete(ctx context.Context, ownerID, id string, confirmed bool) error {
	if !confirmed {
		return appErrors.Clone(appErrors.ErrValidation, "delete must be confirmed")
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.WrapAs(appErrors.ErrWrite, err, "failed to delete activity")
	}
	announce(ctx, s.changes, s.logger, models.CollectionActivities, models.ChangeDelete, id, ownerID)
	return nil
}

func (s *ActivityService) owned(ctx context.Context, ownerID, id string) (*models.Activity, error) {
	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if activity.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}
	return activity, nil
}

func (s *ActivityService) validate(input models.ActivityInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if input.Date.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	return nil
}
