package imagehost

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/staff-remuneration-api/pkg/storage"
)

// Local keeps images on disk and hands out signed /media URLs.
type Local struct {
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	urlPrefix string
	folder    string
}

// NewLocal builds a disk-backed host. urlPrefix is prepended to each token, e.g. "/media/".
func NewLocal(store *storage.LocalStorage, signer *storage.SignedURLSigner, urlPrefix, folder string) *Local {
	if urlPrefix == "" {
		urlPrefix = "/media/"
	}
	return &Local{store: store, signer: signer, urlPrefix: urlPrefix, folder: folder}
}

// Upload stores the image under a random name.
func (l *Local) Upload(ctx context.Context, filename string, r io.Reader) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	if l.folder != "" {
		name = l.folder + "/" + name
	}
	if _, err := l.store.SaveStream(name, r); err != nil {
		return nil, err
	}
	token, _, err := l.signer.Generate(name)
	if err != nil {
		_ = l.store.Delete(name)
		return nil, fmt.Errorf("sign media url: %w", err)
	}
	return &Image{URL: l.urlPrefix + token, PublicID: name}, nil
}

// Delete removes the stored file.
func (l *Local) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	return l.store.Delete(publicID)
}
