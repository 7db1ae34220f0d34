package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"sync"
	"time"

	"github.com/croscope/croscope/models"
)

// entry holds a cached record with its creation timestamp.
type entry struct {
	record    models.AnalysisRecord
	createdAt time.Time
}

// Cache is a simple in-memory cache for per-page analysis records, so a
// batch re-run with overlapping URLs skips the capture and model call for
// pages analyzed recently. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older
// than 1 hour.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}

	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the page URL and the effective prompt
// override (empty for the default template). Two batches analyzing the same
// URL with different prompts must not share records.
func Key(url, prompt string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached record if it exists and is younger than maxAgeMs.
// If maxAgeMs <= 0, no lookup is performed. The returned record is a copy:
// callers re-stamp identity keys and must not mutate shared state.
func (c *Cache) Get(key string, maxAgeMs int) (models.AnalysisRecord, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}

	return maps.Clone(e.record), true
}

// Set stores a record. Failure records are not cached — a transient capture
// or model fault should not poison later runs. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, rec models.AnalysisRecord) {
	if rec.Failed() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		record:    maps.Clone(rec),
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts entries older than 1 hour every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
