package application

import (
	"sync"
	"time"
)

// SnapshotCache is a short-TTL cache of discovery results, keyed by
// repository and resource. Each entry carries a validator token (for check
// run lists, the PR's head SHA); a lookup only hits when the entry is
// unexpired and the caller's validator matches, so a new head commit
// invalidates the stale check list immediately. Entries expire after the TTL
// regardless of validator, guaranteeing eventual re-fetch for resources whose
// validator cannot change (an in-progress check completing, for example).
//
// The cache is constructed once per process and injected into the discovery
// service; it is safe for concurrent use.
type SnapshotCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     any
	validator string
	storedAt  time.Time
}

// NewSnapshotCache creates an empty cache whose entries live for ttl.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for key if the entry is unexpired and its
// validator equals the given one. An entry stored with an empty validator is
// TTL-only and matches any lookup validator of "".
func (c *SnapshotCache) Get(key, validator string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Since(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	if entry.validator != validator {
		return nil, false
	}

	return entry.value, true
}

// Put stores value under key with the given validator, replacing any
// existing entry.
func (c *SnapshotCache) Put(key, validator string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:     value,
		validator: validator,
		storedAt:  time.Now(),
	}
}

// Invalidate removes the entry for key, if any.
func (c *SnapshotCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of live entries, expired or not. Used by tests.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
