package gcsuploader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// MockObjectStore is a mock implementation of ObjectStore for testing.
type MockObjectStore struct {
	BucketName    string
	PutObjectFunc func(ctx context.Context, object string, r io.Reader) error
	GetObjectFunc func(ctx context.Context, object string, w io.Writer) (int64, error)
}

func (m *MockObjectStore) Bucket() string { return m.BucketName }

func (m *MockObjectStore) PutObject(ctx context.Context, object string, r io.Reader) error {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, object, r)
	}
	return nil
}

func (m *MockObjectStore) GetObject(ctx context.Context, object string, w io.Writer) (int64, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, object, w)
	}
	return 0, nil
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.Nop())
}

func fixedArchiver(objects *MockObjectStore) *Archiver {
	objects.BucketName = "ledger-bucket"
	a := NewArchiver(objects)
	a.now = func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) }
	a.newID = func() string { return "fixed" }
	return a
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArchiver_Archive(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := writeFile(t, dir, "transactions.csv", "ledger rows\n")
	analyticsPath := writeFile(t, dir, "analytics.csv", "analytics rows\n")

	uploaded := map[string]string{}
	objects := &MockObjectStore{
		PutObjectFunc: func(ctx context.Context, object string, r io.Reader) error {
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			uploaded[object] = string(data)
			return nil
		},
	}

	uris, err := fixedArchiver(objects).Archive(testContext(), ledgerPath, analyticsPath)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	wantURIs := []string{
		"gs://ledger-bucket/ledger/2026-10-16/fixed-transactions.csv",
		"gs://ledger-bucket/ledger/2026-10-16/fixed-analytics.csv",
	}
	if len(uris) != 2 || uris[0] != wantURIs[0] || uris[1] != wantURIs[1] {
		t.Errorf("uris = %v, want %v", uris, wantURIs)
	}
	if uploaded["ledger/2026-10-16/fixed-transactions.csv"] != "ledger rows\n" {
		t.Errorf("uploaded = %v", uploaded)
	}
}

func TestArchiver_ArchiveStopsOnError(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "a")
	b := writeFile(t, dir, "b.csv", "b")

	calls := 0
	objects := &MockObjectStore{
		PutObjectFunc: func(ctx context.Context, object string, r io.Reader) error {
			calls++
			return errors.New("permission denied")
		},
	}

	uris, err := fixedArchiver(objects).Archive(testContext(), a, b)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || len(uris) != 0 {
		t.Errorf("calls = %d, uris = %v", calls, uris)
	}

	calls = 0
	if _, err := fixedArchiver(objects).Archive(testContext(), filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for a missing file")
	}
	if calls != 0 {
		t.Error("a missing file must not be uploaded")
	}
}

func TestArchiver_Restore(t *testing.T) {
	content := "\"id\",\"datetime\"\n\"tx-1\",\"2026-10-16T10:00:00\"\n"
	var requested string
	objects := &MockObjectStore{
		GetObjectFunc: func(ctx context.Context, object string, w io.Writer) (int64, error) {
			requested = object
			n, err := io.Copy(w, bytes.NewBufferString(content))
			return n, err
		},
	}
	a := fixedArchiver(objects)
	dest := filepath.Join(t.TempDir(), "transactions.csv")

	if err := a.Restore(testContext(), "gs://ledger-bucket/ledger/x.csv", dest); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if requested != "ledger/x.csv" {
		t.Errorf("object = %q", requested)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != content {
		t.Fatalf("restored = %q, %v", got, err)
	}

	err = a.Restore(testContext(), "gs://ledger-bucket/ledger/x.csv", dest)
	if !errors.Is(err, ErrDestinationExists) {
		t.Errorf("second Restore error = %v, want ErrDestinationExists", err)
	}

	other := filepath.Join(t.TempDir(), "other.csv")
	if err := a.Restore(testContext(), "gs://someone-else/ledger/x.csv", other); !errors.Is(err, ErrBucketMismatch) {
		t.Errorf("foreign bucket error = %v, want ErrBucketMismatch", err)
	}
}

func TestArchiver_RestoreFetchError(t *testing.T) {
	objects := &MockObjectStore{
		GetObjectFunc: func(ctx context.Context, object string, w io.Writer) (int64, error) {
			w.Write([]byte("partial"))
			return 7, errors.New("connection reset")
		},
	}
	dest := filepath.Join(t.TempDir(), "transactions.csv")

	if err := fixedArchiver(objects).Restore(testContext(), "gs://ledger-bucket/o", dest); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("a failed restore must not leave a file behind")
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/ledger/2026-10-16/a.csv", "bucket", "ledger/2026-10-16/a.csv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/a.csv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI = %q, %q", bucket, object)
			}
		})
	}
}
