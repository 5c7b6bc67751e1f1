// Package kv provides small named key-value buckets backed by SQLite or memory.
// Values are stored as JSON so both backends decode the same way.
package kv

import (
	"encoding/json"
	"fmt"
	"time"
)

// StoreOptions contains optional parameters for Store operations.
type StoreOptions struct {
	TTL time.Duration // Time-to-live; zero means no expiry
}

// Bucket is the interface for key-value storage operations.
type Bucket interface {
	// Name returns the bucket name.
	Name() string

	// IsPersistent returns true if the bucket survives restarts.
	IsPersistent() bool

	// Store saves a JSON-encodable value under key.
	Store(key string, value any, opts *StoreOptions) error

	// Load decodes the value under key into dst.
	// found is false when the key doesn't exist or has expired.
	Load(key string, dst any) (found bool, err error)

	// Delete removes a key from the bucket.
	// Returns true if the key existed.
	Delete(key string) (bool, error)

	// Keys returns all non-expired keys in the bucket.
	Keys() ([]string, error)

	// Clear removes all keys from the bucket.
	Clear() error
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}
