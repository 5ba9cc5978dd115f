package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
)

type certificateRepository interface {
	List(ctx context.Context, q models.Query) ([]models.Certificate, error)
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	Create(ctx context.Context, c *models.Certificate) error
	Delete(ctx context.Context, id string) error
	ListWithOwners(ctx context.Context, search string) ([]models.TeacherCertificate, error)
}

// CertificateServiceConfig wires the certificate service.
type CertificateServiceConfig struct {
	Blobs   BlobStore
	Cleanup JobEnqueuer
	Metrics BlobCleanupRecorder
	Changes ChangePublisher
	Policy  UploadPolicy
	Logger  *zap.Logger
}

// CertificateService stores certificate files and their metadata. The two
// live in different stores, so every write is two steps with separately
// reported outcomes.
type CertificateService struct {
	repo    certificateRepository
	blobs   BlobStore
	janitor blobJanitor
	changes ChangePublisher
	policy  UploadPolicy
	logger  *zap.Logger
	now     func() time.Time
}

func NewCertificateService(repo certificateRepository, cfg CertificateServiceConfig) *CertificateService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CertificateService{
		repo:    repo,
		blobs:   cfg.Blobs,
		janitor: blobJanitor{blobs: cfg.Blobs, queue: cfg.Cleanup, metrics: cfg.Metrics, logger: cfg.Logger},
		changes: cfg.Changes,
		policy:  cfg.Policy,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// List returns the owner's certificates with download links.
func (s *CertificateService) List(ctx context.Context, ownerID string) ([]models.Certificate, error) {
	q := models.Query{Collection: models.CollectionCertificates}.
		Where("userId", models.OpEq, ownerID).
		OrderBy("issuedAt", true)
	certs, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	for i := range certs {
		certs[i].FileURL = s.url(ctx, certs[i].FileRef)
	}
	return certs, nil
}

// ListForTeacher returns every certificate with its owner's email. search
// matches title, email or issued date.
func (s *CertificateService) ListForTeacher(ctx context.Context, search string) ([]models.TeacherCertificate, error) {
	certs, err := s.repo.ListWithOwners(ctx, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	for i := range certs {
		certs[i].FileURL = s.url(ctx, certs[i].FileRef)
	}
	return certs, nil
}

// Upload stores the file under users/{owner}/files/{unix}_{name} and then its
// metadata. When the metadata insert fails the stored file is removed.
func (s *CertificateService) Upload(ctx context.Context, ownerID, title string, file FileUpload) (*models.Certificate, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if err := s.policy.check(file); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	objectPath := fmt.Sprintf("users/%s/files/%d_%s", ownerID, now.Unix(), safeFileName(file.FileName))
	locator, err := s.blobs.Put(ctx, objectPath, file.Reader)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to store certificate file")
	}

	cert := &models.Certificate{
		OwnerID:   ownerID,
		Title:     title,
		FileRef:   locator,
		FileName:  file.FileName,
		MimeType:  file.MimeType,
		SizeBytes: file.Size,
		IssuedAt:  now,
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		s.janitor.discard(ctx, locator)
		return nil, appErrors.WrapAs(appErrors.ErrWrite, err, "failed to save certificate")
	}
	announce(ctx, s.changes, s.logger, models.CollectionCertificates, models.ChangeInsert, cert.ID, ownerID)
	cert.FileURL = s.url(ctx, locator)
	return cert, nil
}

// Delete removes the stored file, then the metadata. If the file cannot be
// removed nothing is deleted. If only the file was removed a
// *PartialDeleteError is returned and the certificate stays listed until
// RetryDelete succeeds.
func (s *CertificateService) Delete(ctx context.Context, ownerID, id string) error {
	cert, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, cert.FileRef); err != nil {
		s.logger.Warn("certificate file delete failed",
			zap.String("certificate_id", id), zap.Error(err))
		return appErrors.WrapAs(appErrors.ErrWrite, err, "failed to delete certificate file")
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("certificate metadata delete failed after file removal",
			zap.String("certificate_id", id), zap.Error(err))
		return &appErrors.PartialDeleteError{
			Resource:        "certificate",
			ID:              id,
			BlobDeleted:     true,
			MetadataDeleted: false,
			Err:             err,
		}
	}

	announce(ctx, s.changes, s.logger, models.CollectionCertificates, models.ChangeDelete, id, ownerID)
	return nil
}

// RetryDelete finishes a partial delete. File removal is idempotent, so the
// whole delete is simply run again.
func (s *CertificateService) RetryDelete(ctx context.Context, ownerID, id string) error {
	s.logger.Info("retrying certificate delete", zap.String("certificate_id", id))
	return s.Delete(ctx, ownerID, id)
}

func (s *CertificateService) owned(ctx context.Context, ownerID, id string) (*models.Certificate, error) {
	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.OwnerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return cert, nil
}

func (s *CertificateService) url(ctx context.Context, locator string) string {
	if locator == "" {
		return ""
	}
	u, err := s.blobs.GetURL(ctx, locator)
	if err != nil {
		s.logger.Warn("sign certificate url", zap.String("locator", locator), zap.Error(err))
		return ""
	}
	return u
}
