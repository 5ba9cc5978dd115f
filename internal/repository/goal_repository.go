package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var goalSchema = collectionSchema{
	table:   "goals",
	columns: "id, user_id, title, description, target_date, priority, status, created_at",
	fields: map[string]string{
		"id":         "id",
		"userId":     "user_id",
		"status":     "status",
		"priority":   "priority",
		"targetDate": "target_date",
		"createdAt":  "created_at",
	},
}

type GoalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func (r *GoalRepository) List(ctx context.Context, q models.Query) ([]models.Goal, error) {
	return selectDocuments[models.Goal](ctx, r.db, goalSchema, q)
}

func (r *GoalRepository) GetByID(ctx context.Context, id string) (*models.Goal, error) {
	return getDocument[models.Goal](ctx, r.db, goalSchema, id)
}

func (r *GoalRepository) Create(ctx context.Context, g *models.Goal) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO goals (id, user_id, title, description, target_date, priority, status, created_at) VALUES (:id, :user_id, :title, :description, :target_date, :priority, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *GoalRepository) Update(ctx context.Context, g *models.Goal) error {
	const query = `UPDATE goals SET title = :title, description = :description, target_date = :target_date, priority = :priority, status = :status WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, g)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return expectAffected(res, "goals")
}

func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.db, goalSchema.table, id)
}
