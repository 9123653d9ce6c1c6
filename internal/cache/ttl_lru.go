package cache

import (
	"container/list"
	"sync"
	"time"

	"market-data-service/internal/metrics"
)

// Stats is a snapshot of one cache instance's counters.
type Stats struct {
	Size          int    `json:"size"`
	HitCount      uint64 `json:"hit_count"`
	MissCount     uint64 `json:"miss_count"`
	EvictionCount uint64 `json:"eviction_count"`
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// entry is a single cache slot. Owned exclusively by the cache that created
// it; destroyed on expiry check, explicit invalidation, or eviction.
type entry struct {
	key         string
	data        interface{}
	createdAt   time.Time
	ttl         time.Duration
	accessCount uint64
	lastAccess  time.Time
}

// An entry is visible strictly before created_at+ttl; at the boundary it is
// already expired.
func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.createdAt.Add(e.ttl))
}

// TTLCache is a capacity-bounded store mapping string keys to values with
// independent per-entry expiry and LRU eviction on overflow. Expiry is lazy:
// an expired entry is removed the moment a Get observes it; CleanupExpired
// exists for proactive memory reclamation only.
type TTLCache struct {
	mu         sync.Mutex
	name       string
	maxSize    int
	defaultTTL time.Duration
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	hits       uint64
	misses     uint64
	evictions  uint64
}

// NewTTLCache creates a cache holding at most maxSize entries. name labels
// the instance in metrics.
func NewTTLCache(name string, maxSize int, defaultTTL time.Duration) *TTLCache {
	return &TTLCache{
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get retrieves a value if it exists and is unexpired, marking the entry
// most-recently-used. A miss is a normal return, never an error.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.RecordCacheMiss(c.name)
		return nil, false
	}

	e := elem.Value.(*entry)
	now := time.Now()
	if e.expired(now) {
		c.removeElement(elem)
		c.misses++
		metrics.RecordCacheMiss(c.name)
		return nil, false
	}

	c.order.MoveToFront(elem)
	e.accessCount++
	e.lastAccess = now
	c.hits++
	metrics.RecordCacheHit(c.name)
	return e.data, true
}

// Set stores a value with the default TTL.
func (c *TTLCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL. Any existing entry for the
// key is replaced first; if the cache is then at capacity, the
// least-recently-used entry is evicted before insertion.
func (c *TTLCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions++
			metrics.RecordCacheEviction(c.name)
		}
	}

	now := time.Now()
	e := &entry{
		key:        key,
		data:       value,
		createdAt:  now,
		ttl:        ttl,
		lastAccess: now,
	}
	c.items[key] = c.order.PushFront(e)
	metrics.UpdateCacheSize(c.name, c.order.Len())
}

// Delete removes an entry, reporting whether it was present.
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// Clear removes all entries. Counters are kept; they are process-wide totals.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
	metrics.UpdateCacheSize(c.name, 0)
}

// CleanupExpired sweeps all expired entries and returns how many were
// removed. Not required for correctness, only for memory reclamation.
func (c *TTLCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the current number of entries.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a consistent snapshot of the cache counters.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:          c.order.Len(),
		HitCount:      c.hits,
		MissCount:     c.misses,
		EvictionCount: c.evictions,
	}
}

// DefaultTTL returns the TTL applied when Set is used without an explicit one.
func (c *TTLCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// removeElement deletes an element from both index and order list.
// Caller must hold c.mu.
func (c *TTLCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(elem)
	metrics.UpdateCacheSize(c.name, c.order.Len())
}
