// Package storage abstracts the image blob store. The lifecycle service only
// sees this interface; Cloudinary is wired in at bootstrap.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable signals the blob backend rejected or failed the operation.
var ErrUnavailable = errors.New("storage: backend unavailable")

// Blob is one stored object: its public URL plus the handle needed to delete it.
type Blob struct {
	URL       string
	StorageID string
}

// BlobStore uploads images and releases them by storage id. Every storage id a
// caller retires must be passed to Delete, otherwise the blob leaks.
type BlobStore interface {
	Upload(ctx context.Context, file io.Reader, filename string) (Blob, error)
	Delete(ctx context.Context, storageID string) error
}
