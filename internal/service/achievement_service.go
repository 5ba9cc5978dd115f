package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type achievementRepository interface {
	Search(ctx context.Context, term string) ([]models.Achievement, error)
	Create(ctx context.Context, a *models.Achievement) error
}

// AchievementServiceConfig wires the achievement service.
type AchievementServiceConfig struct {
	Blobs     BlobStore
	Cleanup   JobEnqueuer
	Metrics   BlobCleanupRecorder
	Changes   ChangePublisher
	Policy    UploadPolicy
	Validator *validator.Validate
	Logger    *zap.Logger
}

// AchievementService manages school-wide achievements and their files.
type AchievementService struct {
	repo      achievementRepository
	blobs     BlobStore
	janitor   blobJanitor
	changes   ChangePublisher
	policy    UploadPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewAchievementService(repo achievementRepository, cfg AchievementServiceConfig) *AchievementService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	return &AchievementService{
		repo:      repo,
		blobs:     cfg.Blobs,
		janitor:   blobJanitor{blobs: cfg.Blobs, queue: cfg.Cleanup, metrics: cfg.Metrics, logger: cfg.Logger},
		changes:   cfg.Changes,
		policy:    cfg.Policy,
		validator: cfg.Validator,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// List returns achievements newest first, optionally filtered by a search over
// title, student name and description.
func (s *AchievementService) List(ctx context.Context, search string) ([]models.Achievement, error) {
	items, err := s.repo.Search(ctx, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}
	for i := range items {
		items[i].FileURL = s.url(ctx, items[i].FileRef)
	}
	return items, nil
}

// Create uploads the file to achievements/{name}-{unix} and stores the
// record. A zero date means today.
func (s *AchievementService) Create(ctx context.Context, input models.AchievementInput, file FileUpload) (*models.Achievement, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.StudentName = strings.TrimSpace(input.StudentName)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid achievement payload")
	}
	if err := s.policy.check(file); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	name := safeFileName(file.FileName)
	ext := path.Ext(name)
	objectPath := fmt.Sprintf("achievements/%s-%d%s", strings.TrimSuffix(name, ext), now.Unix(), ext)
	locator, err := s.blobs.Put(ctx, objectPath, file.Reader)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to store achievement file")
	}

	date := input.Date
	if date.IsZero() {
		date = models.NewDate(now)
	}
	achievement := &models.Achievement{
		Title:       input.Title,
		StudentName: input.StudentName,
		Description: input.Description,
		Date:        date,
		FileRef:     locator,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, achievement); err != nil {
		s.janitor.discard(ctx, locator)
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to save achievement")
	}
	announce(ctx, s.changes, s.logger, models.CollectionAchievements, models.ChangeInsert, achievement.ID, "")
	achievement.FileURL = s.url(ctx, locator)
	return achievement, nil
}

func (s *AchievementService) url(ctx context.Context, locator string) string {
	if locator == "" {
		return ""
	}
	u, err := s.blobs.GetURL(ctx, locator)
	if err != nil {
		s.logger.Warn("sign achievement url", zap.String("locator", locator), zap.Error(err))
		return ""
	}
	return u
}
