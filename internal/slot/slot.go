// Package slot persists the single most recent successful weather lookup.
//
// There is exactly one slot per store, city-agnostic. Save overwrites it; nothing
// deletes it. Backends agree on one JSON encoding so a file written by one
// build can be read by the next.
package slot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// Key is the storage key of the single slot in key/value backends.
const Key = "weather:last"

// Store loads and saves the cache slot.
// Load returns (entry, true, nil) when a slot exists and (zero, false, nil) when none was ever saved.
type Store interface {
	Load(ctx context.Context) (models.CacheEntry, bool, error)
	Save(ctx context.Context, entry models.CacheEntry) error
	Close() error
}

// ErrCorrupt is returned when a persisted slot cannot be decoded.
var ErrCorrupt = errors.New("slot: corrupt entry")

// wireEntry is the persisted form: {"data": <record>, "timestamp": <unix millis>}.
type wireEntry struct {
	Data      models.WeatherRecord `json:"data"`
	Timestamp int64                `json:"timestamp"`
}

func encodeEntry(entry models.CacheEntry) ([]byte, error) {
	raw, err := json.Marshal(wireEntry{
		Data:      entry.Record,
		Timestamp: entry.Timestamp.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("slot: encode: %w", err)
	}
	return raw, nil
}

func decodeEntry(raw []byte) (models.CacheEntry, error) {
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.CacheEntry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if w.Timestamp <= 0 {
		return models.CacheEntry{}, fmt.Errorf("%w: missing timestamp", ErrCorrupt)
	}
	return models.CacheEntry{
		Record:    w.Data,
		Timestamp: time.UnixMilli(w.Timestamp),
	}, nil
}
