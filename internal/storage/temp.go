package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempStore keeps ephemeral pipeline artifacts on local disk.
// The directory is created lazily on first write so an unconfigured
// pipeline never touches the filesystem.
type TempStore struct {
	dir string
}

// NewTempStore creates a TempStore rooted at dir.
// If dir is empty, a directory under os.TempDir() is used.
func NewTempStore(dir string) *TempStore {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "showreel")
	}
	return &TempStore{dir: dir}
}

// Dir returns the temp directory path.
func (s *TempStore) Dir() string {
	return s.dir
}

// Save writes data to a file with the exact given name and returns its
// path. Callers pass names unique per (product, timestamp), so concurrent
// pipeline runs never collide.
func (s *TempStore) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path) // #nosec G304 - path is constructed internally
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return path, nil
}

// Cleanup removes the given files. Missing files are not an error, so
// cleanup stays idempotent across the success and compensation paths.
// It continues even if some files fail to delete, returning the first
// error encountered.
func (s *TempStore) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}
