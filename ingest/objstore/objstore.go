// Package objstore provides the worker's view of object storage: issue a
// short-lived signed URL for an uploaded CSV and fetch it as a byte stream.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore issues signed download URLs for storage paths.
type ObjectStore interface {
	PresignedGetURL(ctx context.Context, object string, expiry time.Duration) (string, error)
}

// MinioObjStore is an implementation of ObjectStore using MinIO.
type MinioObjStore struct {
	client *minio.Client
	bucket string
}

// Options for NewMinioObjectStore.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioObjectStore creates a MinIO-backed object store client.
func NewMinioObjectStore(opts Options) (*MinioObjStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioObjStore{client: client, bucket: opts.Bucket}, nil
}

// PresignedGetURL returns a signed download URL for the given storage path.
func (s *MinioObjStore) PresignedGetURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", object, err)
	}
	return u.String(), nil
}

// Fetch downloads the signed URL and returns the response body as a stream.
// The caller owns the returned ReadCloser. The file is never buffered in
// full; the pipeline consumes the stream incrementally.
func Fetch(ctx context.Context, hc *http.Client, signedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	if resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, errors.New("downloaded file is empty")
	}
	return resp.Body, nil
}
