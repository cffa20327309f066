package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore provides atomic file-based token storage with secure permissions.
// Each token is kept in its own entry file inside dir; writes use temp file +
// rename for crash safety.
type FileStore struct {
	dir string
	now func() time.Time
}

// Compile-time check to ensure FileStore implements TokenStore
var _ TokenStore = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it with 0700
// permissions if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		dir: dir,
		now: time.Now,
	}, nil
}

// Dir returns the directory holding the entry files.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(name Name) (string, error) {
	if err := name.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, string(name)), nil
}

// Get reads the entry file for name. A missing file is reported as absence;
// a file with insecure permissions or unreadable content is an error.
func (f *FileStore) Get(ctx context.Context, name Name) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	path, err := f.path(name)
	if err != nil {
		return Record{}, false, err
	}

	// Check file permissions before reading
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if info.Mode().Perm() != 0600 {
		return Record{}, false, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, false, err
	}

	record, err := decodeRecord(data)
	if err != nil {
		return Record{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return record, true, nil
}

// Set atomically replaces the entry file for name.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Set(ctx context.Context, name Name, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := f.path(name)
	if err != nil {
		return err
	}

	record, err := newRecord(value, ttl, f.now())
	if err != nil {
		return err
	}
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	// Create secure temp file in same directory for atomic rename
	tempFile, err := os.CreateTemp(f.dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if _, err := tempFile.Write(data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempName, path)
}

// IsPresent reports whether a non-expired entry exists for name.
func (f *FileStore) IsPresent(ctx context.Context, name Name) (bool, error) {
	return isPresent(ctx, f, name, f.now)
}
