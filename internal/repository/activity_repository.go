package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var activitySchema = collectionSchema{
	table:   "activities",
	columns: "id, user_id, type, title, description, date, created_at",
	fields: map[string]string{
		"id":        "id",
		"userId":    "user_id",
		"type":      "type",
		"title":     "title",
		"date":      "date",
		"createdAt": "created_at",
	},
}

// ActivityRepository persists student activity records.
type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) List(ctx context.Context, q models.Query) ([]models.Activity, error) {
	return selectDocuments[models.Activity](ctx, r.db, activitySchema, q)
}

func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	return getDocument[models.Activity](ctx, r.db, activitySchema, id)
}

func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activities (id, user_id, type, title, description, date, created_at) VALUES (:id, :user_id, :type, :title, :description, :date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// Update rewrites the editable fields; ownership never changes.
func (r *ActivityRepository) Update(ctx context.Context, a *models.Activity) error {
	const query = `UPDATE activities SET type = :type, title = :title, description = :description, date = :date WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return expectAffected(res, "activities")
}

func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.db, activitySchema.table, id)
}
