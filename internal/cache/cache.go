// Package cache provides a small in-memory LRU cache whose entries expire
// after a fixed age.
package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrItemTooLarge is returned when an item exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Stats holds cache counters.
type Stats struct {
	Capacity  int64 // maximum size in bytes
	Size      int64 // current size in bytes
	ItemCount int
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

// HitRate is hits / (hits + misses), or zero before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Cache is an LRU cache bounded by the total size of its values. Entries
// older than the max age are treated as missing. It is safe for concurrent
// use.
type Cache struct {
	capacity int64
	size     int64
	maxAge   time.Duration

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats

	// now is swapped in tests.
	now func() time.Time
}

type entry struct {
	key    string
	value  []byte
	stored time.Time
}

// New creates a cache holding at most capacity bytes. A maxAge of zero means
// entries never expire.
func New(capacity int64, maxAge time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		maxAge:   maxAge,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if c.expired(e) {
		c.removeElement(elem)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	c.stats.Hits++
	return e.value, true
}

// Put stores value under key, evicting the least recently used entries
// until it fits.
func (c *Cache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	for c.size+n > c.capacity && c.eviction.Len() > 0 {
		c.removeElement(c.eviction.Back())
		c.stats.Evictions++
	}

	elem := c.eviction.PushFront(&entry{key: key, value: value, stored: c.now()})
	c.items[key] = elem
	c.size += n
	return nil
}

// Delete removes key from the cache.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Prune drops every expired entry and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry)) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}
	c.stats.Expired += int64(pruned)
	return pruned
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Capacity = c.capacity
	s.Size = c.size
	s.ItemCount = len(c.items)
	return s
}

// must be called with lock held
func (c *Cache) expired(e *entry) bool {
	return c.maxAge > 0 && c.now().Sub(e.stored) >= c.maxAge
}

// must be called with lock held
func (c *Cache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.size -= int64(len(e.value))
}
