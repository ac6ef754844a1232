package client

import (
	"context"
	"net/http"
	"strings"
)

// Storage returns the object storage client.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{client: c}
}

// StorageClient handles storage operations.
type StorageClient struct {
	client *Client
}

// From returns a bucket client.
func (s *StorageClient) From(bucket string) *BucketClient {
	return &BucketClient{client: s.client, bucket: bucket}
}

// BucketClient reads and writes objects in one bucket.
type BucketClient struct {
	client *Client
	bucket string
}

func (b *BucketClient) objectPath(path string) string {
	return "/storage/v1/object/" + b.bucket + "/" + strings.TrimPrefix(path, "/")
}

// Upload stores data at path, replacing an existing object when upsert is set.
func (b *BucketClient) Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	req, err := b.client.newRequest(ctx, http.MethodPost, b.objectPath(path), nil, data)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if upsert {
		req.Header.Set("x-upsert", "true")
	}
	_, err = b.client.do(req)
	return err
}

// Download returns the object body.
func (b *BucketClient) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := b.client.newRequest(ctx, http.MethodGet, b.objectPath(path), nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	resp, err := b.client.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Remove deletes objects by path.
func (b *BucketClient) Remove(ctx context.Context, paths ...string) error {
	req, err := b.client.newRequest(ctx, http.MethodDelete, "/storage/v1/object/"+b.bucket, nil, map[string][]string{
		"prefixes": paths,
	})
	if err != nil {
		return err
	}
	_, err = b.client.do(req)
	return err
}

// PublicURL returns the URL of an object in a public bucket.
func (b *BucketClient) PublicURL(path string) string {
	return b.client.baseURL + "/storage/v1/object/public/" + b.bucket + "/" + strings.TrimPrefix(path, "/")
}
