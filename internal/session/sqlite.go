// ABOUTME: SQLite implementation of the session Store using modernc.org/sqlite
// ABOUTME: Single two-column table with upsert writes and WAL mode

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single session_keys table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at the given connection
// string and ensures the schema exists.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "session")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS session_keys (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite session store initialized")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Read returns the stored value, or ErrNotFound if the key is absent.
func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session_keys WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session key %q: %w", key, err)
	}
	return []byte(value), nil
}

// Write upserts the value under key.
func (s *SQLiteStore) Write(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_keys (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("writing session key %q: %w", key, err)
	}
	return nil
}

// Remove deletes the key. Removing an absent key is a no-op.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM session_keys WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing session key %q: %w", key, err)
	}
	return nil
}

// Clear removes every session entry.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_keys"); err != nil {
		return fmt.Errorf("clearing session store: %w", err)
	}
	s.logger.Info("session store cleared")
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
