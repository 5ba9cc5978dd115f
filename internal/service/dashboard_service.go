package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/dto"
	"github.com/noah-isme/scholarbridge-api/internal/models"
)

type documentQuerier interface {
	Query(ctx context.Context, q models.Query) (interface{}, error)
}

// DashboardService computes the student dashboard summary on request, for
// clients that do not hold a live view.
type DashboardService struct {
	store  documentQuerier
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardService(store documentQuerier, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{store: store, logger: logger, now: time.Now}
}

// Summary runs the dashboard queries for ownerID. A section whose query fails
// is reported as pending instead of failing the whole summary.
func (s *DashboardService) Summary(ctx context.Context, ownerID string) dto.DashboardSummary {
	today := models.NewDate(s.now())
	var in DashboardInputs
	for _, q := range Queries(ScreenStudentDashboard, ownerID, today) {
		items, err := s.store.Query(ctx, q)
		if err != nil {
			s.logger.Warn("dashboard section unavailable",
				zap.String("user_id", ownerID),
				zap.String("collection", string(q.Collection)),
				zap.Error(err))
			continue
		}
		switch v := items.(type) {
		case []models.Activity:
			in.Activities, in.ActivitiesLoaded = v, true
		case []models.Certificate:
			in.Certificates, in.CertificatesLoaded = v, true
		case []models.Goal:
			in.Goals, in.GoalsLoaded = v, true
		case []models.Event:
			in.Events, in.EventsLoaded = v, true
		}
	}
	return BuildDashboardSummary(in, today)
}
