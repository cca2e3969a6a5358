// Package store persists the bot's trading state in SQLite, keyed by symbol.
// Counters and timestamps that multiple triggers may race on are updated
// with single-statement atomic upserts, never read-then-write.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound marks a missing row for the requested symbol.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQL handle for easier swapping/testing.
type Store struct {
	DB *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path and applies
// the schema. Path ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) migrate() error {
	_, err := s.DB.Exec(schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS latest_price (
	symbol     TEXT PRIMARY KEY,
	price      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
	symbol TEXT NOT NULL,
	ts     INTEGER NOT NULL,
	price  TEXT NOT NULL,
	PRIMARY KEY (symbol, ts)
);

CREATE TABLE IF NOT EXISTS position (
	symbol     TEXT PRIMARY KEY,
	total      TEXT NOT NULL,
	avg_cost   TEXT NOT NULL,
	locked     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS position_layers (
	symbol       TEXT PRIMARY KEY,
	core         TEXT NOT NULL,
	swing        TEXT NOT NULL,
	active       TEXT NOT NULL,
	total        TEXT NOT NULL,
	core_percent TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cost (
	symbol         TEXT PRIMARY KEY,
	avg_cost       TEXT NOT NULL,
	total_invested TEXT NOT NULL,
	realized_pnl   TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_trade_count (
	symbol TEXT NOT NULL,
	date   TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, date)
);

CREATE TABLE IF NOT EXISTS last_trade_time (
	symbol TEXT PRIMARY KEY,
	ts     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
`
