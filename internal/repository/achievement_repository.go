package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scholarbridge-api/internal/models"
)

var achievementSchema = collectionSchema{
	table:   "achievements",
	columns: "id, title, student_name, description, date, file_ref, created_at",
	fields: map[string]string{
		"id":          "id",
		"studentName": "student_name",
		"date":        "date",
		"createdAt":   "created_at",
	},
}

type AchievementRepository struct {
	db *sqlx.DB
}

func NewAchievementRepository(db *sqlx.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) List(ctx context.Context, q models.Query) ([]models.Achievement, error) {
	return selectDocuments[models.Achievement](ctx, r.db, achievementSchema, q)
}

// Search matches title, student name and description case-insensitively,
// newest achievement date first.
func (r *AchievementRepository) Search(ctx context.Context, term string) ([]models.Achievement, error) {
	if strings.TrimSpace(term) == "" {
		return r.List(ctx, models.Query{Collection: models.CollectionAchievements}.OrderBy("date", true))
	}
	query := `SELECT ` + achievementSchema.columns + ` FROM achievements
WHERE LOWER(title) LIKE $1 OR LOWER(student_name) LIKE $1 OR LOWER(COALESCE(description, '')) LIKE $1
ORDER BY date DESC, id ASC`
	out := make([]models.Achievement, 0)
	if err := r.db.SelectContext(ctx, &out, query, searchPattern(term)); err != nil {
		return nil, fmt.Errorf("search achievements: %w", err)
	}
	return out, nil
}

func (r *AchievementRepository) Create(ctx context.Context, a *models.Achievement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO achievements (id, title, student_name, description, date, file_ref, created_at) VALUES (:id, :title, :student_name, :description, :date, :file_ref, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create achievement: %w", err)
	}
	return nil
}
