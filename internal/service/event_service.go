package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, q models.Query) ([]models.Event, error)
	Create(ctx context.Context, e *models.Event) error
}

// EventService manages school-wide events.
type EventService struct {
	repo      eventRepository
	validator *validator.Validate
	changes   ChangePublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewEventService(repo eventRepository, validate *validator.Validate, changes ChangePublisher, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{repo: repo, validator: validate, changes: changes, logger: logger, now: time.Now}
}

// List returns events, most recently created first. With upcomingOnly set
// only events dated today or later are returned.
func (s *EventService) List(ctx context.Context, upcomingOnly bool) ([]models.Event, error) {
	q := models.Query{Collection: models.CollectionEvents}.OrderBy("createdAt", true)
	if upcomingOnly {
		q = q.Where("date", models.OpGte, models.NewDate(s.now()))
	}
	events, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

func (s *EventService) Create(ctx context.Context, input models.EventInput) (*models.Event, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if input.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	event := &models.Event{
		Title:       input.Title,
		Date:        input.Date,
		Description: input.Description,
		ClubName:    input.ClubName,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to save event")
	}
	announce(ctx, s.changes, s.logger, models.CollectionEvents, models.ChangeInsert, event.ID, "")
	return event, nil
}
