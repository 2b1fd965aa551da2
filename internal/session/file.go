// ABOUTME: File-backed Store implementation, one file per key
// ABOUTME: Writes are atomic via temp file + rename so values are never torn

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const fileExt = ".json"

// FileStore persists session entries as files in a directory.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	logger := slog.Default().With("component", "session")
	logger.Info("file session store initialized", "dir", dir)
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+fileExt)
}

// Read returns the stored value, or ErrNotFound if the key is absent.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session key %q: %w", key, err)
	}
	return data, nil
}

// Write replaces the value under key. The temp-file-and-rename dance keeps a
// crash from ever exposing a partially written value.
func (s *FileStore) Write(ctx context.Context, key string, value []byte) error {
	target := s.path(key)
	tmp, err := os.CreateTemp(s.dir, "."+sanitizeKey(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing session key %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session key %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing session key %q: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing session key %q: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Removing an absent key is a no-op.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session key %q: %w", key, err)
	}
	return nil
}

// Clear removes every session entry. Only files this store wrote are touched.
func (s *FileStore) Clear(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("clearing session store: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clearing session store: %w", err)
		}
	}
	s.logger.Info("session store cleared", "dir", s.dir)
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
