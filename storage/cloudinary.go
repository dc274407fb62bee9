package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary implements BlobStore on top of the Cloudinary upload API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary builds a client from a cloudinary:// URL. Uploads land in the
// given folder.
func NewCloudinary(url, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary config: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, filename string) (Blob, error) {
	resp, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: c.folder,
	})
	if err != nil {
		return Blob{}, fmt.Errorf("%w: upload %s: %v", ErrUnavailable, filename, err)
	}
	return Blob{URL: resp.SecureURL, StorageID: resp.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return fmt.Errorf("storage: empty storage id")
	}
	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: storageID}); err != nil {
		return fmt.Errorf("%w: destroy %s: %v", ErrUnavailable, storageID, err)
	}
	return nil
}
