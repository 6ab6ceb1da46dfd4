package holiday

import (
	"errors"
	"time"
)

// ErrInvalidCapacity is returned when a cache is constructed with a
// non-positive capacity.
var ErrInvalidCapacity = errors.New("holiday: cache capacity must be positive")

// DetailCache is a bounded map of resolved holiday details keyed by slug.
// When full, the entry with the oldest insertion timestamp is evicted before
// each insert. It is accessed from a single request path and therefore does
// no locking of its own.
type DetailCache struct {
	capacity int
	entries  map[string]cacheEntry
	now      func() time.Time
}

type cacheEntry struct {
	detail     Holiday
	insertedAt time.Time
}

// NewDetailCache creates an empty cache holding at most capacity entries.
func NewDetailCache(capacity int) (*DetailCache, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &DetailCache{
		capacity: capacity,
		entries:  make(map[string]cacheEntry, capacity),
		now:      time.Now,
	}, nil
}

// Get returns the cached detail for slug, if present.
func (c *DetailCache) Get(slug string) (Holiday, bool) {
	e, ok := c.entries[slug]
	return e.detail, ok
}

// Put stores a detail under slug, evicting the oldest entry first when the
// cache is at capacity. Overwriting an existing slug refreshes its timestamp
// and never evicts.
func (c *DetailCache) Put(slug string, detail Holiday) {
	if _, exists := c.entries[slug]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[slug] = cacheEntry{detail: detail, insertedAt: c.now()}
}

// Len returns the number of cached entries.
func (c *DetailCache) Len() int {
	return len(c.entries)
}

// Clear removes all entries.
func (c *DetailCache) Clear() {
	c.entries = make(map[string]cacheEntry, c.capacity)
}

// Reload clears the cache and warms it with the given details, in order.
// If more details are supplied than the capacity allows, the earliest ones
// are evicted as usual.
func (c *DetailCache) Reload(details []Holiday) {
	c.Clear()
	for _, d := range details {
		c.Put(d.Slug, d)
	}
}

func (c *DetailCache) evictOldest() {
	var (
		oldestKey string
		oldestAt  time.Time
		first     = true
	)
	for key, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.insertedAt
			first = false
		}
	}
	delete(c.entries, oldestKey)
}
