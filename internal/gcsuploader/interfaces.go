package gcsuploader

import (
	"context"
	"io"
)

// ObjectStore reads and writes objects in a single bucket.
type ObjectStore interface {
	Bucket() string
	PutObject(ctx context.Context, object string, r io.Reader) error
	GetObject(ctx context.Context, object string, w io.Writer) (int64, error)
}
