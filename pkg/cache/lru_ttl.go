package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

const defaultTTL = 10 * time.Minute
const defaultCleanupInterval = 1 * time.Minute

var ErrInvalidCapacity = errors.New("cache: capacity must be > 0")

var _ Cache[string, any] = (*LRUWithTTL[string, any])(nil)

// LRUOption is a functional option for building LRUTTL cache
type LRUOption[K comparable, V any] func(*LRUWithTTL[K, V])

// ttlEntry stored in list.Element. A zero expiresAt never expires.
type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU cache with TTL based cleanup
type LRUWithTTL[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[K]*list.Element
	now      func() time.Time

	defaultTTL      time.Duration
	cleanupInterval time.Duration
	cleanupStart    bool
	cleanupStop     chan struct{}
	cleanupRunning  bool
}

// WithDefaultTTL sets the TTL used by Set(). Non-positive values keep the default.
func WithDefaultTTL[K comparable, V any](ttl time.Duration) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithCleanupInterval configures how often the daemon sweeps expired entries.
func WithCleanupInterval[K comparable, V any](interval time.Duration) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		if interval > 0 {
			c.cleanupInterval = interval
		}
	}
}

// WithCleanupStart configures whether to start the cleanup daemon on cache creation.
func WithCleanupStart[K comparable, V any](start bool) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		c.cleanupStart = start
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock[K comparable, V any](now func() time.Time) LRUOption[K, V] {
	return func(c *LRUWithTTL[K, V]) {
		if now != nil {
			c.now = now
		}
	}
}

// NewLRUTTL creates an LRU cache with TTL based cleanup.
func NewLRUTTL[K comparable, V any](capacity int, opts ...LRUOption[K, V]) (*LRUWithTTL[K, V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	c := &LRUWithTTL[K, V]{
		capacity:        capacity,
		ll:              list.New(),
		items:           make(map[K]*list.Element, capacity),
		now:             time.Now,
		defaultTTL:      defaultTTL,
		cleanupInterval: defaultCleanupInterval,
		cleanupStart:    true,
	}

	for _, o := range opts {
		o(c)
	}

	if c.cleanupStart {
		c.StartCleanupDaemon()
	}
	return c, nil
}

// Get returns value if present and not expired; marks as most-recent.
func (c *LRUWithTTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := element.Value.(*ttlEntry[K, V])
	if c.isExpired(entry) {
		c.removeElement(element)
		return zero, false
	}
	c.ll.MoveToFront(element)
	return entry.value, true
}

// Set stores value using the default TTL.
func (c *LRUWithTTL[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value with a specific ttl. ttl < 0 means no expiry, ttl == 0 uses the default.
func (c *LRUWithTTL[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	switch {
	case ttl > 0:
		expiresAt = c.now().Add(ttl)
	case ttl == 0:
		expiresAt = c.now().Add(c.defaultTTL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// update if it's existing
	if element, ok := c.items[key]; ok {
		entry := element.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.ll.MoveToFront(element)
		return
	}

	// if its full, evict the least recently used
	if len(c.items) >= c.capacity {
		if tail := c.ll.Back(); tail != nil {
			c.removeElement(tail)
		}
	}

	element := c.ll.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = element
}

// Delete removes the key from the cache (both the linked list node and the items map).
func (c *LRUWithTTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.items[key]; ok {
		c.removeElement(element)
	}
}

// Len returns the number of stored items. Expired items count until they are swept.
func (c *LRUWithTTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetAll returns a shallow copy of the non-expired contents.
func (c *LRUWithTTL[K, V]) GetAll() map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[K]V, len(c.items))
	for k, ele := range c.items {
		entry := ele.Value.(*ttlEntry[K, V])
		if !c.isExpired(entry) {
			out[k] = entry.value
		}
	}
	return out
}

func (c *LRUWithTTL[K, V]) removeElement(element *list.Element) {
	entry := element.Value.(*ttlEntry[K, V])
	c.ll.Remove(element)
	delete(c.items, entry.key)
}

func (c *LRUWithTTL[K, V]) isExpired(entry *ttlEntry[K, V]) bool {
	if entry.expiresAt.IsZero() {
		return false
	}
	return c.now().After(entry.expiresAt)
}

// CRONJOB

// Close stops cleanup cronjob if running.
func (c *LRUWithTTL[K, V]) Close() {
	c.StopCleanupDaemon()
}

// StartCleanupDaemon starts a background goroutine that periodically evicts
// expired items. Calling it while the daemon runs is a no-op.
func (c *LRUWithTTL[K, V]) StartCleanupDaemon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanupRunning {
		return
	}
	stop := make(chan struct{})
	c.cleanupStop = stop
	c.cleanupRunning = true

	go func() {
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cleanupExpired()
			case <-stop:
				return
			}
		}
	}()
}

// StopCleanupDaemon stops the daemon if running.
func (c *LRUWithTTL[K, V]) StopCleanupDaemon() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cleanupRunning {
		close(c.cleanupStop)
		c.cleanupRunning = false
	}
}

// cleanupExpired walks the list and drops expired entries from both the list and the map.
func (c *LRUWithTTL[K, V]) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for current := c.ll.Front(); current != nil; {
		next := current.Next()
		if c.isExpired(current.Value.(*ttlEntry[K, V])) {
			c.removeElement(current)
		}
		current = next
	}
}
