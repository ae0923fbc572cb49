package routing

import (
	"sync"
	"time"
)

// affinityEntry pins one logical session to an endpoint.
type affinityEntry struct {
	endpointName   string
	expiresAt      time.Time
	createdAt      time.Time
	lastAccessedAt time.Time
}

// AffinityCache maps session keys to endpoint names with TTL expiry, LRU
// eviction at capacity, and an optional cap on how many live sessions may
// pin to the same endpoint.
type AffinityCache struct {
	ttl            time.Duration
	maxEntries     int
	maxPerEndpoint int

	mu      sync.RWMutex
	entries map[string]*affinityEntry

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewAffinityCache creates a cache. ttl must be positive; maxEntries and
// maxPerEndpoint of 0 mean unlimited. A background sweep removes expired
// entries at half the TTL so per-endpoint counts stay accurate between
// lookups.
func NewAffinityCache(ttl time.Duration, maxEntries, maxPerEndpoint int) *AffinityCache {
	c := &AffinityCache{
		ttl:            ttl,
		maxEntries:     maxEntries,
		maxPerEndpoint: maxPerEndpoint,
		entries:        make(map[string]*affinityEntry),
		stopCh:         make(chan struct{}),
	}

	interval := ttl / 2
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	go c.sweepLoop(interval)

	return c
}

// Get returns the pinned endpoint for a session key, if the pin is still
// live. Expired entries are removed on access.
func (c *AffinityCache) Get(key string) (string, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	entry.lastAccessedAt = now
	return entry.endpointName, true
}

// Set pins a session to an endpoint. The pin is refused (silently) when
// the endpoint already carries its maximum number of live sessions; the
// session then simply re-ranks on its next request. A full cache evicts
// its least recently used entry first.
func (c *AffinityCache) Set(key, endpointName string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.endpointName = endpointName
		existing.expiresAt = now.Add(c.ttl)
		existing.lastAccessedAt = now
		return
	}

	if c.maxPerEndpoint > 0 && c.liveCountLocked(endpointName, now) >= c.maxPerEndpoint {
		return
	}
	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRULocked()
	}

	c.entries[key] = &affinityEntry{
		endpointName:   endpointName,
		expiresAt:      now.Add(c.ttl),
		createdAt:      now,
		lastAccessedAt: now,
	}
}

// Delete removes a session pin.
func (c *AffinityCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DropEndpoint removes every pin to an endpoint, used when an endpoint
// is disabled or removed.
func (c *AffinityCache) DropEndpoint(endpointName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.endpointName == endpointName {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of live entries.
func (c *AffinityCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *AffinityCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCh) })
}

// liveCountLocked counts unexpired pins on an endpoint. Caller holds the
// lock.
func (c *AffinityCache) liveCountLocked(endpointName string, now time.Time) int {
	n := 0
	for _, entry := range c.entries {
		if entry.endpointName == endpointName && now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}

// evictLRULocked removes the least recently accessed entry. Caller holds
// the lock.
func (c *AffinityCache) evictLRULocked() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *AffinityCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
