package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const fileMode = 0o644

// EnsureHeader makes sure path exists and starts with the exact header line.
// A missing file is created with the header. A file whose first line differs
// is rewritten through a temp file and an atomic rename, with every byte after
// the first line kept as is. The parent directory is never created.
func EnsureHeader(path string, header []string) (repaired bool, err error) {
	want := headerLine(header)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeAtomic(path, []byte(want+"\n")); err != nil {
			return false, fmt.Errorf("EnsureHeader: create %s: %w", path, err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("EnsureHeader: read %s: %w", path, err)
	}

	first, rest := splitFirstLine(data)
	if string(first) == want {
		return false, nil
	}

	fixed := make([]byte, 0, len(want)+1+len(rest))
	fixed = append(fixed, want...)
	fixed = append(fixed, '\n')
	fixed = append(fixed, rest...)
	if err := writeAtomic(path, fixed); err != nil {
		return false, fmt.Errorf("EnsureHeader: rewrite %s: %w", path, err)
	}
	return true, nil
}

// splitFirstLine returns the first line without its newline and everything
// after that newline.
func splitFirstLine(data []byte) (first, rest []byte) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil
	}
	return data[:i], data[i+1:]
}

// writeAtomic replaces path with data. The temp file lives in the same
// directory so the rename never crosses filesystems.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return fmt.Errorf("writeAtomic: create temp: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writeAtomic: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writeAtomic: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writeAtomic: close temp: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writeAtomic: rename: %w", err)
	}
	return nil
}

// AppendRow appends one encoded row with a single write on an O_APPEND
// descriptor. The file must already exist. A final line left without its
// newline by a hand edit is terminated first so the row starts on its own line.
func AppendRow(path string, fields []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_RDWR, fileMode)
	if err != nil {
		return fmt.Errorf("AppendRow: open %s: %w", path, err)
	}

	row := EncodeRow(fields)
	terminated, err := endsWithNewline(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("AppendRow: %s: %w", path, err)
	}
	if !terminated {
		row = "\n" + row
	}

	if _, err := f.Write([]byte(row)); err != nil {
		f.Close()
		return fmt.Errorf("AppendRow: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("AppendRow: close %s: %w", path, err)
	}
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read last byte: %w", err)
	}
	return last[0] == '\n', nil
}
