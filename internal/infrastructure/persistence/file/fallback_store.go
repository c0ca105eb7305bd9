// Package file implements the default local fallback store: one JSON file per
// key in a directory on the service host.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/exportstafft-ui/intern-attendance/internal/domain/attendance"
)

// ErrKeyEmpty is returned when an empty key is provided.
var ErrKeyEmpty = errors.New("fallback file: key cannot be empty")

// FallbackStore implements attendance.FallbackStore on the local filesystem.
// Keys are escaped into flat file names so "data/attendance.json" cannot
// reach outside the directory.
type FallbackStore struct {
	dir string
	mu  sync.Mutex
}

var _ attendance.FallbackStore = (*FallbackStore)(nil)

// NewFallbackStore creates the directory if needed.
func NewFallbackStore(dir string) (*FallbackStore, error) {
	if dir == "" {
		return nil, errors.New("fallback file: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fallback file: create dir %s: %w", dir, err)
	}
	return &FallbackStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FallbackStore) Dir() string {
	return s.dir
}

func (s *FallbackStore) pathFor(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

// Save writes data atomically: temp file in the same directory, then rename.
func (s *FallbackStore) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".fallback-*")
	if err != nil {
		return fmt.Errorf("fallback file save %s: %w", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("fallback file save %s: write: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("fallback file save %s: sync: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("fallback file save %s: close: %w", key, err)
	}
	if err := os.Rename(tmpName, s.pathFor(key)); err != nil {
		cleanup()
		return fmt.Errorf("fallback file save %s: rename: %w", key, err)
	}
	return nil
}

// Load returns the stored copy or attendance.ErrFallbackMiss.
func (s *FallbackStore) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, attendance.ErrFallbackMiss
		}
		return nil, fmt.Errorf("fallback file load %s: %w", key, err)
	}
	return data, nil
}

// Ping checks that the directory exists and is a directory.
func (s *FallbackStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("fallback file: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("fallback file: %s is not a directory", s.dir)
	}
	return nil
}
