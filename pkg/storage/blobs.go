package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Blobs is the blob store used by the upload services: local files plus signed
// download links served under urlPrefix.
type Blobs struct {
	local     *LocalStorage
	signer    *SignedURLSigner
	urlPrefix string
}

func NewBlobs(local *LocalStorage, signer *SignedURLSigner, urlPrefix string) *Blobs {
	return &Blobs{local: local, signer: signer, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (b *Blobs) Put(ctx context.Context, objectPath string, r io.Reader) (string, error) {
	return b.local.Put(ctx, objectPath, r)
}

func (b *Blobs) Delete(ctx context.Context, locator string) error {
	return b.local.Delete(ctx, locator)
}

// GetURL returns a time-limited download link for locator.
func (b *Blobs) GetURL(_ context.Context, locator string) (string, error) {
	token, _, err := b.signer.Generate("blob", locator)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return b.urlPrefix + "/" + token, nil
}

// OpenToken checks a download token and opens the object it names.
func (b *Blobs) OpenToken(ctx context.Context, token string) (*os.File, string, error) {
	_, objectPath, _, err := b.signer.Parse(token, false)
	if err != nil {
		return nil, "", err
	}
	file, err := b.local.Open(ctx, objectPath)
	if err != nil {
		return nil, "", err
	}
	return file, objectPath, nil
}
