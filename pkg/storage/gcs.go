package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores blobs in a Google Cloud Storage bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name required")
	}

	var opts []option.ClientOption
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("writing gcs object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gcs object %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening gcs object %s: %w", key, err)
	}
	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting gcs object %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
