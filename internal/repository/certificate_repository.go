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

var certificateSchema = collectionSchema{
	table:   "certificates",
	columns: "id, user_id, title, file_ref, file_name, mime_type, size_bytes, issued_at",
	fields: map[string]string{
		"id":       "id",
		"userId":   "user_id",
		"title":    "title",
		"issuedAt": "issued_at",
	},
}

// CertificateRepository persists certificate metadata; the files themselves
// live in the blob store.
type CertificateRepository struct {
	db *sqlx.DB
}

func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) List(ctx context.Context, q models.Query) ([]models.Certificate, error) {
	return selectDocuments[models.Certificate](ctx, r.db, certificateSchema, q)
}

func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	return getDocument[models.Certificate](ctx, r.db, certificateSchema, id)
}

func (r *CertificateRepository) Create(ctx context.Context, c *models.Certificate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, user_id, title, file_ref, file_name, mime_type, size_bytes, issued_at) VALUES (:id, :user_id, :title, :file_ref, :file_name, :mime_type, :size_bytes, :issued_at)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	return deleteDocument(ctx, r.db, certificateSchema.table, id)
}

// ListWithOwners returns every certificate joined with its owner's email,
// newest first. Missing profiles yield "Unknown". search matches title, email
// or the issued date (YYYY-MM-DD).
func (r *CertificateRepository) ListWithOwners(ctx context.Context, search string) ([]models.TeacherCertificate, error) {
	query := `SELECT c.id, c.user_id, c.title, c.file_ref, c.file_name, c.mime_type, c.size_bytes, c.issued_at, COALESCE(u.email, 'Unknown') AS owner_email
FROM certificates c LEFT JOIN users u ON u.id = c.user_id`
	var args []interface{}
	if strings.TrimSpace(search) != "" {
		query += ` WHERE LOWER(c.title) LIKE $1 OR LOWER(COALESCE(u.email, 'unknown')) LIKE $1 OR TO_CHAR(c.issued_at, 'YYYY-MM-DD') LIKE $1`
		args = append(args, searchPattern(search))
	}
	query += ` ORDER BY c.issued_at DESC, c.id ASC`

	out := make([]models.TeacherCertificate, 0)
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list certificates with owners: %w", err)
	}
	return out, nil
}
