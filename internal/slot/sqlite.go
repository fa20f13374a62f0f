package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-widget/internal/models"
)

// SQLiteStore keeps the slot as the only row of weather_slot. The CHECK on id
// makes a second row impossible.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("slot: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("slot: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS weather_slot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			captured_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating weather_slot table: %w", err)
	}
	return nil
}

// Load implements Store.Load.
func (s *SQLiteStore) Load(ctx context.Context) (models.CacheEntry, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM weather_slot WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("loading slot: %w", err)
	}
	entry, err := decodeEntry([]byte(raw))
	if err != nil {
		return models.CacheEntry{}, false, err
	}
	return entry, true, nil
}

// Save implements Store.Save with an upsert on the single row.
func (s *SQLiteStore) Save(ctx context.Context, entry models.CacheEntry) error {
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weather_slot (id, data, captured_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			captured_at = excluded.captured_at
	`, string(raw), entry.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving slot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
