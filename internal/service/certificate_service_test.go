package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/jobs"
)

type certRepoStub struct {
	mu        sync.Mutex
	certs     map[string]models.Certificate
	createErr error
	deleteErr error
}

func newCertRepoStub(certs ...models.Certificate) *certRepoStub {
	r := &certRepoStub{certs: make(map[string]models.Certificate)}
	for _, c := range certs {
		r.certs[c.ID] = c
	}
	return r
}

func (r *certRepoStub) List(_ context.Context, q models.Query) ([]models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, _ := q.OwnerID()
	out := make([]models.Certificate, 0)
	for _, c := range r.certs {
		if owner == "" || c.OwnerID == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *certRepoStub) GetByID(_ context.Context, id string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (r *certRepoStub) Create(_ context.Context, c *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if c.ID == "" {
		c.ID = "cert-new"
	}
	r.certs[c.ID] = *c
	return nil
}

func (r *certRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.certs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.certs, id)
	return nil
}

func (r *certRepoStub) ListWithOwners(_ context.Context, _ string) ([]models.TeacherCertificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TeacherCertificate, 0)
	for _, c := range r.certs {
		out = append(out, models.TeacherCertificate{Certificate: c, OwnerEmail: UnknownEmail})
	}
	return out, nil
}

type blobStub struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
	deletes   int
}

func newBlobStub(locators ...string) *blobStub {
	b := &blobStub{objects: make(map[string][]byte)}
	for _, l := range locators {
		b.objects[l] = []byte("pdf")
	}
	return b
}

func (b *blobStub) Put(_ context.Context, objectPath string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	b.objects[objectPath] = buf.Bytes()
	return objectPath, nil
}

func (b *blobStub) Delete(_ context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, locator)
	return nil
}

func (b *blobStub) GetURL(_ context.Context, locator string) (string, error) {
	return "/files/" + locator, nil
}

func (b *blobStub) has(locator string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[locator]
	return ok
}

func (b *blobStub) setDeleteErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteErr = err
}

type queueStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []models.Change
	err     error
}

func (r *changeRecorder) Publish(_ context.Context, change models.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.err
}

func (r *changeRecorder) all() []models.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Change(nil), r.changes...)
}

type cleanupCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *cleanupCounter) RecordBlobCleanup(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}

const certLocator = "users/stu-1/files/1700000000_first-aid.pdf"

func existingCert() models.Certificate {
	return models.Certificate{ID: "c1", OwnerID: "stu-1", Title: "First Aid", FileRef: certLocator}
}

func TestCertificateDeleteMetadataFailureIsPartial(t *testing.T) {
	repo := newCertRepoStub(existingCert())
	repo.deleteErr = errors.New("connection reset")
	blobs := newBlobStub(certLocator)
	changes := &changeRecorder{}
	svc := NewCertificateService(repo, CertificateServiceConfig{Blobs: blobs, Changes: changes})

	err := svc.Delete(context.Background(), "stu-1", "c1")
	require.Error(t, err)

	var partial *appErrors.PartialDeleteError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.BlobDeleted)
	assert.False(t, partial.MetadataDeleted)
	assert.Equal(t, appErrors.ErrPartialDelete.Code, appErrors.FromError(err).Code)
	assert.False(t, blobs.has(certLocator))
	assert.Empty(t, changes.all())

	listed, err := svc.List(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "c1", listed[0].ID)

	repo.deleteErr = nil
	require.NoError(t, svc.RetryDelete(context.Background(), "stu-1", "c1"))
	listed, err = svc.List(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
	require.Len(t, changes.all(), 1)
	assert.Equal(t, models.ChangeDelete, changes.all()[0].Op)
}

func TestCertificateDeleteBlobFailureDeletesNothing(t *testing.T) {
	repo := newCertRepoStub(existingCert())
	blobs := newBlobStub(certLocator)
	blobs.setDeleteErr(errors.New("disk busy"))
	svc := NewCertificateService(repo, CertificateServiceConfig{Blobs: blobs})

	err := svc.Delete(context.Background(), "stu-1", "c1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrWrite))

	var partial *appErrors.PartialDeleteError
	assert.False(t, errors.As(err, &partial))
	assert.True(t, blobs.has(certLocator))
	listed, _ := svc.List(context.Background(), "stu-1")
	assert.Len(t, listed, 1)
}

func TestCertificateDeleteOtherOwner(t *testing.T) {
	repo := newCertRepoStub(existingCert())
	blobs := newBlobStub(certLocator)
	svc := NewCertificateService(repo, CertificateServiceConfig{Blobs: blobs})

	err := svc.Delete(context.Background(), "stu-2", "c1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, blobs.has(certLocator))
}

func TestCertificateUploadStoresBlobAndMetadata(t *testing.T) {
	repo := newCertRepoStub()
	blobs := newBlobStub()
	changes := &changeRecorder{err: errors.New("redis down")}
	svc := NewCertificateService(repo, CertificateServiceConfig{
		Blobs:   blobs,
		Changes: changes,
		Policy:  UploadPolicy{MaxBytes: 1024, AllowedMIMEs: []string{"application/pdf"}},
	})
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	cert, err := svc.Upload(context.Background(), "stu-1", " First Aid ", FileUpload{
		Reader: strings.NewReader("pdf"), FileName: "first aid.pdf", MimeType: "application/pdf", Size: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "First Aid", cert.Title)
	assert.Equal(t, "users/stu-1/files/1700000000_first_aid.pdf", cert.FileRef)
	assert.Equal(t, "/files/users/stu-1/files/1700000000_first_aid.pdf", cert.FileURL)
	assert.True(t, blobs.has(cert.FileRef))
	require.Len(t, changes.all(), 1)
	assert.Equal(t, "stu-1", changes.all()[0].OwnerID)

	_, err = svc.Upload(context.Background(), "stu-1", "Big", FileUpload{
		Reader: strings.NewReader("x"), FileName: "big.pdf", MimeType: "application/pdf", Size: 4096,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Upload(context.Background(), "stu-1", "Exe", FileUpload{
		Reader: strings.NewReader("x"), FileName: "a.exe", MimeType: "application/x-msdownload", Size: 1,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCertificateUploadRemovesOrphanBlob(t *testing.T) {
	repo := newCertRepoStub()
	repo.createErr = errors.New("insert failed")
	blobs := newBlobStub()
	counter := &cleanupCounter{}
	svc := NewCertificateService(repo, CertificateServiceConfig{Blobs: blobs, Metrics: counter})

	_, err := svc.Upload(context.Background(), "stu-1", "Chess", FileUpload{Reader: strings.NewReader("x"), FileName: "chess.pdf", Size: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrWrite))
	assert.Empty(t, blobs.objects)
	assert.Equal(t, []string{CleanupInline}, counter.outcomes)
}

func TestCertificateUploadQueuesCleanupWhenInlineDeleteFails(t *testing.T) {
	repo := newCertRepoStub()
	repo.createErr = errors.New("insert failed")
	blobs := newBlobStub()
	blobs.setDeleteErr(errors.New("disk busy"))
	queue := &queueStub{}
	counter := &cleanupCounter{}
	svc := NewCertificateService(repo, CertificateServiceConfig{Blobs: blobs, Cleanup: queue, Metrics: counter})

	_, err := svc.Upload(context.Background(), "stu-1", "Chess", FileUpload{Reader: strings.NewReader("x"), FileName: "chess.pdf", Size: 1})
	require.Error(t, err)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobBlobDelete, queue.jobs[0].Type)
	assert.NotEmpty(t, queue.jobs[0].Payload["locator"])
	assert.Equal(t, []string{CleanupQueued}, counter.outcomes)

	handler := BlobCleanupHandler(blobs, counter, nil)
	assert.Error(t, handler(context.Background(), queue.jobs[0]))
	blobs.setDeleteErr(nil)
	require.NoError(t, handler(context.Background(), queue.jobs[0]))
	assert.Empty(t, blobs.objects)
	assert.Equal(t, []string{CleanupQueued, CleanupRetry, CleanupDone}, counter.outcomes)
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", safeFileName("../../report.pdf"))
	assert.Equal(t, "my_cert_1_.pdf", safeFileName(`C:\docs\my cert (1).pdf`))
	assert.Equal(t, "file", safeFileName(".."))
}
