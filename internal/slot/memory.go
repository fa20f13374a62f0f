package slot

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// MemoryStore keeps the slot in process memory. It does not survive restarts;
// used in tests and for `--slot in_memory`.
type MemoryStore struct {
	mu    sync.RWMutex
	entry models.CacheEntry
	ok    bool
}

// NewMemoryStore returns an empty in-memory slot.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.Load.
func (s *MemoryStore) Load(ctx context.Context) (models.CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.CacheEntry{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry, s.ok, nil
}

// Save implements Store.Save, overwriting any previous entry.
func (s *MemoryStore) Save(ctx context.Context, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = entry
	s.ok = true
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
