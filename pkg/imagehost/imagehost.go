// Package imagehost stores profile images either on Cloudinary or on local disk.
package imagehost

import (
	"context"
	"io"
)

// Image identifies an uploaded picture.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Host uploads and removes images.
type Host interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*Image, error)
	Delete(ctx context.Context, publicID string) error
}
