package service

import (
	"context"
	"io"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/jobs"
)

// JobBlobDelete removes an orphaned blob; its payload carries "locator".
const JobBlobDelete = "blob.delete"

// Cleanup outcomes reported to the BlobCleanupRecorder.
const (
	CleanupInline = "inline"
	CleanupQueued = "queued"
	CleanupRetry  = "retry"
	CleanupDone   = "done"
	CleanupLost   = "lost"
)

// BlobStore is the object storage used for uploaded files.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, r io.Reader) (string, error)
	Delete(ctx context.Context, locator string) error
	GetURL(ctx context.Context, locator string) (string, error)
}

// JobEnqueuer accepts background jobs.
type JobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// BlobCleanupRecorder counts orphan blob removals.
type BlobCleanupRecorder interface {
	RecordBlobCleanup(outcome string)
}

// FileUpload is a file received from a client.
type FileUpload struct {
	Reader   io.Reader
	FileName string
	MimeType string
	Size     int64
}

// UploadPolicy bounds accepted files. Zero values accept anything.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

func (p UploadPolicy) check(file FileUpload) error {
	if file.Reader == nil || strings.TrimSpace(file.FileName) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if p.MaxBytes > 0 && file.Size > p.MaxBytes {
		return appErrors.Clone(appErrors.ErrValidation, "file too large")
	}
	if len(p.AllowedMIMEs) > 0 {
		mime := strings.ToLower(strings.TrimSpace(strings.SplitN(file.MimeType, ";", 2)[0]))
		for _, allowed := range p.AllowedMIMEs {
			if strings.EqualFold(allowed, mime) {
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFileName keeps the base name of an uploaded file usable as a path segment.
func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// blobJanitor removes blobs whose metadata write failed: inline first, then
// through the cleanup queue.
type blobJanitor struct {
	blobs   BlobStore
	queue   JobEnqueuer
	metrics BlobCleanupRecorder
	logger  *zap.Logger
}

func (j blobJanitor) discard(ctx context.Context, locator string) {
	err := j.blobs.Delete(ctx, locator)
	if err == nil {
		j.record(CleanupInline)
		return
	}
	j.logger.Warn("orphan blob delete failed, queueing", zap.String("locator", locator), zap.Error(err))
	if j.queue == nil {
		j.record(CleanupLost)
		j.logger.Error("orphan blob left behind", zap.String("locator", locator))
		return
	}
	job := jobs.Job{Type: JobBlobDelete, Payload: map[string]string{"locator": locator}}
	if err := j.queue.Enqueue(job); err != nil {
		j.record(CleanupLost)
		j.logger.Error("orphan blob left behind", zap.String("locator", locator), zap.Error(err))
		return
	}
	j.record(CleanupQueued)
}

func (j blobJanitor) record(outcome string) {
	if j.metrics != nil {
		j.metrics.RecordBlobCleanup(outcome)
	}
}

// BlobCleanupHandler processes JobBlobDelete jobs.
func BlobCleanupHandler(blobs BlobStore, metrics BlobCleanupRecorder, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := blobJanitor{blobs: blobs, metrics: metrics, logger: logger}
	return func(ctx context.Context, job jobs.Job) error {
		locator := job.Payload["locator"]
		if locator == "" {
			logger.Warn("blob cleanup job without locator", zap.String("job_id", job.ID))
			return nil
		}
		if err := blobs.Delete(ctx, locator); err != nil {
			j.record(CleanupRetry)
			return err
		}
		j.record(CleanupDone)
		return nil
	}
}
