package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for object paths that escape the base directory.
var ErrInvalidPath = errors.New("invalid object path")

// ErrObjectNotFound is returned by Open for missing objects.
var ErrObjectNotFound = errors.New("object not found")

// LocalStorage keeps blobs as files under a base directory. Object paths are
// slash separated and relative, e.g. users/u1/files/1700000000_cert.pdf.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates baseDir when missing.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Put streams r into objectPath, replacing any existing object, and returns the
// locator to persist alongside metadata.
func (s *LocalStorage) Put(ctx context.Context, objectPath string, r io.Reader) (string, error) {
	path, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("commit object: %w", err)
	}
	return cleanPath(objectPath), nil
}

// Open returns a read handle for the object.
func (s *LocalStorage) Open(ctx context.Context, objectPath string) (*os.File, error) {
	path, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Delete removes the object. Deleting a missing object succeeds.
func (s *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	path, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Exists reports whether the object is present.
func (s *LocalStorage) Exists(objectPath string) bool {
	path, err := s.resolve(objectPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *LocalStorage) resolve(objectPath string) (string, error) {
	clean := cleanPath(objectPath)
	if clean == "" || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

func cleanPath(objectPath string) string {
	p := filepath.ToSlash(filepath.Clean("/" + strings.TrimSpace(objectPath)))
	return strings.TrimPrefix(p, "/")
}
