// Package db provides the shared SQLite connection and schema for chromad.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema.
// ":memory:" opens a private in-memory database.
func Open(dbPath string) (*DB, error) {
	dsn := dbPath + "?_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Audit ledger - append-only history of dispatches and mode changes
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS event_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			payload TEXT,
			source TEXT,
			dispatch_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_type_ts ON event_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_ledger_dispatch ON event_ledger(dispatch_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create event_ledger table: %w", err)
	}

	// KV store - controller and watch-list state with optional TTL
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			expires_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (bucket, key)
		);
		CREATE INDEX IF NOT EXISTS idx_kv_bucket ON kv_store(bucket);
		CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_store(expires_at) WHERE expires_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
