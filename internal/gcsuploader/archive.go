package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// ArchivePrefix is the object prefix for ledger snapshots.
const ArchivePrefix = "ledger"

// ErrDestinationExists is returned by Restore when the target file is present.
var ErrDestinationExists = errors.New("restore destination already exists")

// ErrBucketMismatch is returned by Restore for a URI outside the archive bucket.
var ErrBucketMismatch = errors.New("object is not in the archive bucket")

// Archiver copies ledger files to and from a bucket.
type Archiver struct {
	objects ObjectStore
	now     func() time.Time
	newID   func() string
}

// NewArchiver creates an archiver over objects.
func NewArchiver(objects ObjectStore) *Archiver {
	return &Archiver{
		objects: objects,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// ObjectName returns ledger/<date>/<uuid>-<file name> for path.
func (a *Archiver) ObjectName(path string) string {
	return fmt.Sprintf("%s/%s/%s-%s", ArchivePrefix, a.now().Format("2006-01-02"), a.newID(), filepath.Base(path))
}

// Archive uploads each file and returns the resulting gs:// URIs in order.
// It stops at the first failure.
func (a *Archiver) Archive(ctx context.Context, paths ...string) ([]string, error) {
	log := logger.FromContext(ctx)

	uris := make([]string, 0, len(paths))
	for _, path := range paths {
		uri, err := a.archiveOne(ctx, path)
		if err != nil {
			return uris, fmt.Errorf("Archive: %w", err)
		}
		log.Info().Str("file", path).Str("gcs_uri", uri).Msg("Archived ledger file")
		uris = append(uris, uri)
	}
	return uris, nil
}

func (a *Archiver) archiveOne(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	object := a.ObjectName(path)
	if err := a.objects.PutObject(ctx, object, f); err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.objects.Bucket(), object), nil
}

// Restore downloads uri into dest. It never overwrites an existing file and
// removes a partially written one.
func (a *Archiver) Restore(ctx context.Context, uri, dest string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return fmt.Errorf("Restore: %w", err)
	}
	if bucket != a.objects.Bucket() {
		return fmt.Errorf("Restore: %s: %w", uri, ErrBucketMismatch)
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("Restore: %s: %w", dest, ErrDestinationExists)
		}
		return fmt.Errorf("Restore: create %s: %w", dest, err)
	}

	n, err := a.objects.GetObject(ctx, object, f)
	if err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("Restore: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("Restore: close %s: %w", dest, err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("gcs_uri", uri).Str("file", dest).Int64("bytes", n).Msg("Restored ledger file")
	return nil
}
