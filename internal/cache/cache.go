// Package cache holds small mutex-guarded lookup tables shared across the
// session, such as the process-wide clip index.
package cache

import (
	"sort"
	"sync"
)

// Index caches values by key so lookups do not walk the playlist tree.
// Lookups run on every frame change and must stay cheap.
type Index[K comparable, V any] struct {
	m     sync.Mutex
	items map[K]V
}

func NewIndex[K comparable, V any]() *Index[K, V] {
	return &Index[K, V]{
		items: make(map[K]V),
	}
}

func (c *Index[K, V]) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = make(map[K]V)
}

func (c *Index[K, V]) Get(key K) (V, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	v, ok := c.items[key]
	return v, ok
}

// Put stores v under key, replacing any earlier value.
func (c *Index[K, V]) Put(key K, v V) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items[key] = v
}

// PutNew stores v only when key is unused and reports whether it did.
func (c *Index[K, V]) PutNew(key K, v V) bool {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.items[key]; ok {
		return false
	}
	c.items[key] = v
	return true
}

func (c *Index[K, V]) Delete(key K) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.items, key)
}

func (c *Index[K, V]) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.items)
}

// Keys returns the keys sorted by less.
func (c *Index[K, V]) Keys(less func(a, b K) bool) []K {
	c.m.Lock()
	out := make([]K, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	c.m.Unlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Inc increments the counter and returns the new value.
func (c *SafeCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v
}
