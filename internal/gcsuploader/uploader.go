package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const transferTimeout = 2 * time.Minute

// BucketStore is the Cloud Storage backed ObjectStore. It relies on
// Application Default Credentials.
type BucketStore struct {
	client *storage.Client
	bucket string
}

// NewBucketStore opens a storage client bound to bucket.
func NewBucketStore(ctx context.Context, bucket string) (*BucketStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBucketStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucketStore: create storage client: %w", err)
	}
	return &BucketStore{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (s *BucketStore) Close() error {
	return s.client.Close()
}

func (s *BucketStore) Bucket() string { return s.bucket }

// PutObject streams r into object as text/csv.
func (s *BucketStore) PutObject(ctx context.Context, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("PutObject: copy to %s: %w", object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("PutObject: finalize %s: %w", object, err)
	}
	return nil
}

// GetObject streams object into w and returns the byte count.
func (s *BucketStore) GetObject(ctx context.Context, object string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	rc, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("GetObject: open %s/%s: %w", s.bucket, object, err)
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("GetObject: read %s/%s: %w", s.bucket, object, err)
	}
	return n, nil
}

var _ ObjectStore = (*BucketStore)(nil)

// ParseGCSURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return bucket, object, nil
}
