package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var eventSchema = collectionSchema{
	table:   "events",
	columns: "id, title, date, description, club_name, created_at",
	fields: map[string]string{
		"id":        "id",
		"date":      "date",
		"clubName":  "club_name",
		"createdAt": "created_at",
	},
}

// EventRepository persists school-wide events.
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) List(ctx context.Context, q models.Query) ([]models.Event, error) {
	return selectDocuments[models.Event](ctx, r.db, eventSchema, q)
}

func (r *EventRepository) Create(ctx context.Context, e *models.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO events (id, title, date, description, club_name, created_at) VALUES (:id, :title, :date, :description, :club_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}
