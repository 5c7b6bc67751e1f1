package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteBucket is a persistent bucket backed by the kv_store table.
type SQLiteBucket struct {
	db   *sql.DB
	name string
}

// NewSQLiteBucket creates a new SQLite-backed bucket.
func NewSQLiteBucket(db *sql.DB, name string) *SQLiteBucket {
	return &SQLiteBucket{
		db:   db,
		name: name,
	}
}

// Name returns the bucket name.
func (b *SQLiteBucket) Name() string {
	return b.name
}

// IsPersistent returns true.
func (b *SQLiteBucket) IsPersistent() bool {
	return true
}

// Store saves a value with the given key.
func (b *SQLiteBucket) Store(key string, value any, opts *StoreOptions) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Unix()

	var expiresAt *int64
	if opts != nil && opts.TTL > 0 {
		exp := time.Now().Add(opts.TTL).UTC().Unix()
		expiresAt = &exp
	}

	_, err = b.db.Exec(`
		INSERT INTO kv_store (bucket, key, value, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, b.name, key, string(data), expiresAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}
	return nil
}

// Load decodes the value under key into dst.
func (b *SQLiteBucket) Load(key string, dst any) (bool, error) {
	var value string
	var expiresAt sql.NullInt64

	err := b.db.QueryRow(`
		SELECT value, expires_at FROM kv_store
		WHERE bucket = ? AND key = ?
	`, b.name, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get value: %w", err)
	}

	if expiresAt.Valid && time.Now().UTC().Unix() > expiresAt.Int64 {
		_, _ = b.db.Exec(`DELETE FROM kv_store WHERE bucket = ? AND key = ?`, b.name, key)
		return false, nil
	}

	return true, decode([]byte(value), dst)
}

// Delete removes a key from the bucket.
func (b *SQLiteBucket) Delete(key string) (bool, error) {
	result, err := b.db.Exec(`DELETE FROM kv_store WHERE bucket = ? AND key = ?`, b.name, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Keys returns all non-expired keys in the bucket.
func (b *SQLiteBucket) Keys() ([]string, error) {
	rows, err := b.db.Query(`
		SELECT key FROM kv_store
		WHERE bucket = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key
	`, b.name, time.Now().UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Clear removes all keys from the bucket.
func (b *SQLiteBucket) Clear() error {
	if _, err := b.db.Exec(`DELETE FROM kv_store WHERE bucket = ?`, b.name); err != nil {
		return fmt.Errorf("failed to clear bucket: %w", err)
	}
	return nil
}

// CleanupExpired removes all expired entries from the database.
func CleanupExpired(db *sql.DB) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}
	return result.RowsAffected()
}
