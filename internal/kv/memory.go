package kv

import (
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // Zero value means no expiry
}

func (e *memoryEntry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryBucket is an in-memory bucket (not persisted).
type MemoryBucket struct {
	name    string
	entries map[string]*memoryEntry
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryBucket creates a new in-memory bucket.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Name returns the bucket name.
func (b *MemoryBucket) Name() string {
	return b.name
}

// IsPersistent returns false.
func (b *MemoryBucket) IsPersistent() bool {
	return false
}

// Store saves a value with the given key.
func (b *MemoryBucket) Store(key string, value any, opts *StoreOptions) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry := &memoryEntry{data: data}
	if opts != nil && opts.TTL > 0 {
		entry.expiresAt = b.now().Add(opts.TTL)
	}
	b.entries[key] = entry
	return nil
}

// Load decodes the value under key into dst.
func (b *MemoryBucket) Load(key string, dst any) (bool, error) {
	b.mu.Lock()
	entry, ok := b.entries[key]
	if ok && entry.isExpired(b.now()) {
		delete(b.entries, key)
		ok = false
	}
	b.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, decode(entry.data, dst)
}

// Delete removes a key from the bucket.
func (b *MemoryBucket) Delete(key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.entries[key]
	delete(b.entries, key)
	return ok, nil
}

// Keys returns all non-expired keys in the bucket.
func (b *MemoryBucket) Keys() ([]string, error) {
	b.CleanupExpired()

	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Clear removes all keys from the bucket.
func (b *MemoryBucket) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = make(map[string]*memoryEntry)
	return nil
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (b *MemoryBucket) CleanupExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	count := 0
	for key, entry := range b.entries {
		if entry.isExpired(now) {
			delete(b.entries, key)
			count++
		}
	}
	return count
}
