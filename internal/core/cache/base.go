package cache

import (
	"sync"
	"time"
)

// Entry represents a cached item
type Entry struct {
	Key          string
	Value        interface{}
	ExpiresAt    time.Time
	CreatedAt    time.Time
	AccessCount  uint64
	LastAccessed time.Time
}

// Stats contains cache performance metrics
type Stats struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	HitCount  uint64    `json:"hit_count"`
	MissCount uint64    `json:"miss_count"`
	HitRate   float64   `json:"hit_rate"`
	CreatedAt time.Time `json:"created_at"`
	TTL       string    `json:"ttl"`
}

// TTLCache is an in-process cache with per-entry expiry. Instances are
// constructed once and injected; there is no package-level cache.
type TTLCache struct {
	name      string
	data      map[string]*Entry
	mutex     sync.Mutex
	ttl       time.Duration
	hitCount  uint64
	missCount uint64
	createdAt time.Time
	now       func() time.Time
}

// NewTTLCache creates a cache with a default entry TTL
func NewTTLCache(name string, ttl time.Duration) *TTLCache {
	return &TTLCache{
		name:      name,
		data:      make(map[string]*Entry),
		ttl:       ttl,
		createdAt: time.Now(),
		now:       time.Now,
	}
}

// Name returns the cache identifier
func (c *TTLCache) Name() string {
	return c.name
}

// Size returns the number of entries in the cache
func (c *TTLCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.data)
}

// Get retrieves a value by key. Expired entries are removed on access.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.data[key]
	if !exists {
		c.missCount++
		return nil, false
	}

	if c.now().After(entry.ExpiresAt) {
		delete(c.data, key)
		c.missCount++
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = c.now()
	c.hitCount++
	return entry.Value, true
}

// Set stores a value by key. A zero ttl uses the cache default.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ttl == 0 {
		ttl = c.ttl
	}

	now := c.now()
	c.data[key] = &Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Delete removes a specific key from the cache
func (c *TTLCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, key)
}

// Clear removes all entries from the cache
func (c *TTLCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]*Entry)
}

// Stats returns cache performance statistics
func (c *TTLCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	total := c.hitCount + c.missCount
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hitCount) / float64(total)
	}

	return Stats{
		Name:      c.name,
		Size:      len(c.data),
		HitCount:  c.hitCount,
		MissCount: c.missCount,
		HitRate:   hitRate,
		CreatedAt: c.createdAt,
		TTL:       c.ttl.String(),
	}
}
