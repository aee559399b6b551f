// Package store persists tasks, extraction batches and per-channel ingestion
// watermarks in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task or batch does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistent task storage using SQLite.
// It owns the only shared mutable state of the bot; SQLite serializes
// conflicting writes, the application adds no locking of its own.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates a Store backed by the SQLite database at path, creating the
// parent directory if needed and running migrations. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			batch_id INTEGER NOT NULL,
			task_text TEXT NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			source_message_id INTEGER,
			source_message_link TEXT,
			source_message_ts INTEGER,
			dedupe_key TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_batches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			source_channel_id INTEGER NOT NULL,
			target_channel_id INTEGER NOT NULL,
			message_start_id INTEGER,
			message_end_id INTEGER,
			message_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'open',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_progress (
			channel_id INTEGER PRIMARY KEY,
			last_message_id INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		// Linear export columns
		`ALTER TABLE tasks ADD COLUMN linear_issue_id TEXT`,
		`ALTER TABLE tasks ADD COLUMN linear_issue_url TEXT`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_dedupe ON tasks(dedupe_key)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_batch ON tasks(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_channel ON tasks(user_id, channel_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			// ALTER TABLE is not idempotent in SQLite
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// nullInt64 stores zero as NULL so optional ids stay optional.
func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
