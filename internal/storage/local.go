package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage keeps objects as plain files under a base directory so the
// persisted state stays inspectable with a text editor.
type LocalStorage struct {
	baseDir string
}

var _ Backend = (*LocalStorage)(nil)

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "."
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Store writes to a temp file in the same directory and renames it into
// place, so readers never observe a half-written file.
func (s *LocalStorage) Store(_ context.Context, name string, data []byte) error {
	target := filepath.Join(s.baseDir, name)

	tmp, err := os.CreateTemp(s.baseDir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Retrieve reads the named file, mapping a missing file to ErrNotFound.
func (s *LocalStorage) Retrieve(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
