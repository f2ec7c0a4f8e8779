package kvstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore backs the KV interface with a single-table SQLite database.
// Each key holds one opaque JSON blob; updates replace the whole value, so
// the overwrite semantics match the file store.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens (and initializes) a SQLite-backed store at dsn.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: connect: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenSQLite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements the KV interface.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("SQLiteStore.Get: %w", err)
	}
	return value, true, nil
}

// Set implements the KV interface.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("SQLiteStore.Set: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
