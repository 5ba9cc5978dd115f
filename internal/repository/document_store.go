package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

// DocumentStore answers collection queries for live subscriptions by
// dispatching to the typed repositories. Results are typed slices, e.g.
// []models.Activity for the activities collection.
type DocumentStore struct {
	Activities   *ActivityRepository
	Certificates *CertificateRepository
	Goals        *GoalRepository
	Events       *EventRepository
	Achievements *AchievementRepository
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{
		Activities:   NewActivityRepository(db),
		Certificates: NewCertificateRepository(db),
		Goals:        NewGoalRepository(db),
		Events:       NewEventRepository(db),
		Achievements: NewAchievementRepository(db),
	}
}

// Query runs q against its collection.
func (s *DocumentStore) Query(ctx context.Context, q models.Query) (interface{}, error) {
	switch q.Collection {
	case models.CollectionActivities:
		return s.Activities.List(ctx, q)
	case models.CollectionCertificates:
		return s.Certificates.List(ctx, q)
	case models.CollectionGoals:
		return s.Goals.List(ctx, q)
	case models.CollectionEvents:
		return s.Events.List(ctx, q)
	case models.CollectionAchievements:
		return s.Achievements.List(ctx, q)
	default:
		return nil, fmt.Errorf("%w: collection %q", ErrUnsupportedField, q.Collection)
	}
}
