package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePutOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	locator, err := store.Put(ctx, "users/u1/files/1_cert.pdf", strings.NewReader("pdf-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "users/u1/files/1_cert.pdf", locator)
	assert.True(t, store.Exists(locator))

	f, err := store.Open(ctx, locator)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(body))

	require.NoError(t, store.Delete(ctx, locator))
	assert.False(t, store.Exists(locator))
	// deleting twice is not an error
	require.NoError(t, store.Delete(ctx, locator))

	_, err = store.Open(ctx, locator)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	// cleaned relative to the root, so it stays inside the base dir
	locator, err := store.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", locator)
}

func TestBlobsURLAndOpenToken(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	blobs := NewBlobs(store, NewSignedURLSigner("s", 0), "/api/v1/files/")
	ctx := context.Background()

	locator, err := blobs.Put(ctx, "achievements/medal-1.png", strings.NewReader("png"))
	require.NoError(t, err)

	url, err := blobs.GetURL(ctx, locator)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/api/v1/files/"))

	f, path, err := blobs.OpenToken(ctx, strings.TrimPrefix(url, "/api/v1/files/"))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, locator, path)
}
