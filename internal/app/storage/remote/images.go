package remote

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/R3E-Network/souschef/supabase/client"
)

// Images stores receipt photos in a storage bucket.
type Images struct {
	bucket *client.BucketClient
}

// NewImages binds a bucket.
func NewImages(c *client.Client, bucket string) *Images {
	return &Images{bucket: c.Storage().From(bucket)}
}

// Put uploads an image for a receipt and returns its object path,
// "<owner>/<receipt><ext>".
func (i *Images) Put(ctx context.Context, owner, receiptID string, data []byte, contentType string) (string, error) {
	objectPath := path.Join(owner, receiptID+extension(contentType))
	if err := i.bucket.Upload(ctx, objectPath, data, contentType, true); err != nil {
		return "", fmt.Errorf("upload receipt image: %w", err)
	}
	return objectPath, nil
}

// Get downloads an image by object path.
func (i *Images) Get(ctx context.Context, objectPath string) ([]byte, error) {
	return i.bucket.Download(ctx, objectPath)
}

// Delete removes an image.
func (i *Images) Delete(ctx context.Context, objectPath string) error {
	return i.bucket.Remove(ctx, objectPath)
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
