// Package cache provides the in-memory hot layer used in front of the
// durable store.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a fixed-capacity LRU cache with per-entry expiration.
type LRU[V any] struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	items map[string]*item[V]
	order *list.List
}

type item[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	element   *list.Element
}

// New creates an LRU holding at most capacity entries, each expiring ttl
// after its last Set.
func New[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*item[V]),
		order:    list.New(),
	}
}

// Get returns the value for key and whether a live entry exists.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	it, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(it.expiresAt) {
		c.remove(it)
		return zero, false
	}
	c.order.MoveToFront(it.element)
	return it.value, true
}

// Set stores the value for key, evicting the least recently used entry when
// at capacity.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if it, ok := c.items[key]; ok {
		it.value = value
		it.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(it.element)
		return
	}

	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest.Value.(*item[V]))
	}

	it := &item[V]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	it.element = c.order.PushFront(it)
	c.items[key] = it
}

// Delete removes the entry for key, if any.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok {
		c.remove(it)
	}
}

// Clear removes every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item[V])
	c.order.Init()
}

// Len returns the number of entries, expired ones included.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// PruneExpired removes all expired entries and returns the count removed.
func (c *LRU[V]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []*item[V]
	now := time.Now()
	for _, it := range c.items {
		if now.After(it.expiresAt) {
			expired = append(expired, it)
		}
	}
	for _, it := range expired {
		c.remove(it)
	}
	return len(expired)
}

// remove must be called with the lock held.
func (c *LRU[V]) remove(it *item[V]) {
	c.order.Remove(it.element)
	delete(c.items, it.key)
}
