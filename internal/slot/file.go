package slot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// FileStore keeps the slot as one JSON document on disk, the local-storage
// equivalent for a desktop widget. Writes go to a temp file and are renamed into place.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path, creating the parent directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("slot: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("slot: create directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the file the slot is stored in.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.Load. A missing file is a miss, not an error.
func (s *FileStore) Load(ctx context.Context) (models.CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheEntry{}, false, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("slot: read %s: %w", s.path, err)
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Save implements Store.Save.
func (s *FileStore) Save(ctx context.Context, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".slot-*.json")
	if err != nil {
		return fmt.Errorf("slot: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("slot: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("slot: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("slot: replace %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (s *FileStore) Close() error {
	return nil
}
