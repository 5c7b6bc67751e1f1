package kv

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager hands out buckets and expires stale entries in the background.
type Manager struct {
	db      *sql.DB
	buckets map[string]Bucket
	mu      sync.Mutex
	stopped chan struct{}
}

// NewManager creates a new KV manager. db may be nil, in which case every
// bucket is kept in memory.
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		db:      db,
		buckets: make(map[string]Bucket),
	}
}

// Bucket returns a bucket by name, creating it if it doesn't exist.
// Persistent buckets are backed by SQLite when a database is available.
func (m *Manager) Bucket(name string, persistent bool) Bucket {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bucket, ok := m.buckets[name]; ok {
		return bucket
	}

	var bucket Bucket
	if persistent && m.db != nil {
		bucket = NewSQLiteBucket(m.db, name)
	} else {
		bucket = NewMemoryBucket(name)
	}
	m.buckets[name] = bucket

	log.Debug().
		Str("bucket", name).
		Bool("persistent", bucket.IsPersistent()).
		Msg("Created KV bucket")
	return bucket
}

// StartCleanup periodically removes expired entries until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	m.stopped = make(chan struct{})

	go func() {
		defer close(m.stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanup()
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started KV cleanup goroutine")
}

// Wait blocks until the cleanup goroutine has exited.
func (m *Manager) Wait() {
	if m.stopped != nil {
		<-m.stopped
	}
}

func (m *Manager) cleanup() {
	if m.db != nil {
		count, err := CleanupExpired(m.db)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to cleanup expired KV entries from SQLite")
		} else if count > 0 {
			log.Debug().Int64("count", count).Msg("Cleaned up expired KV entries from SQLite")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, bucket := range m.buckets {
		if mb, ok := bucket.(*MemoryBucket); ok {
			if cleaned := mb.CleanupExpired(); cleaned > 0 {
				log.Debug().Str("bucket", mb.Name()).Int("count", cleaned).Msg("Cleaned up expired KV entries from memory bucket")
			}
		}
	}
}
