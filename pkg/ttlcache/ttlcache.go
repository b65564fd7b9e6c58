// Package ttlcache implements a bounded map whose entries expire a fixed
// duration after they were written. It backs the shared ontology cache:
// values stored here are immutable snapshots, so readers may share them
// freely across transactions.
package ttlcache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key     K
	value   V
	written time.Time
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	maxEntries int
	expiry     time.Duration
	entries    map[K]*list.Element
	order      *list.List // front = oldest write

	// now is swappable for tests
	now func() time.Time
}

// New creates a cache holding at most maxEntries values, each expiring
// expiry after its last write. maxEntries <= 0 means unbounded.
func New[K comparable, V any](maxEntries int, expiry time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		maxEntries: maxEntries,
		expiry:     expiry,
		entries:    make(map[K]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the live value for key, if any. Expired entries are removed
// on access.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	ent := el.Value.(*entry[K, V])
	if c.expired(ent) {
		c.remove(el)
		return zero, false
	}
	return ent.value, true
}

// Put writes the value, replacing any previous entry and resetting its
// expiry. The oldest write is evicted when the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.written = c.now()
		c.order.MoveToBack(el)
		return
	}

	if c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
		}
	}

	el := c.order.PushBack(&entry[K, V]{key: key, value: value, written: c.now()})
	c.entries[key] = el
}

// Delete removes the entry for key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// Len reports the number of live entries, purging expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge()
	return c.order.Len()
}

// Snapshot copies the live entries into a plain map. Callers receive the
// shared values; they must treat them as immutable.
func (c *Cache[K, V]) Snapshot() map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge()
	out := make(map[K]V, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry[K, V])
		out[ent.key] = ent.value
	}
	return out
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

func (c *Cache[K, V]) expired(ent *entry[K, V]) bool {
	return c.expiry > 0 && c.now().Sub(ent.written) >= c.expiry
}

func (c *Cache[K, V]) purge() {
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry[K, V])) {
			c.remove(el)
		}
		el = next
	}
}

func (c *Cache[K, V]) remove(el *list.Element) {
	ent := el.Value.(*entry[K, V])
	delete(c.entries, ent.key)
	c.order.Remove(el)
}
