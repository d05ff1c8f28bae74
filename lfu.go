package lfu

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// OnEvictFunc is a function that is called when an entry is evicted from the cache.
type OnEvictFunc[K comparable, V any] func(key K, value V)

// Cache represents a thread-safe, fixed-capacity LFU cache. When the
// cache is full, inserting a new key evicts the least frequently used
// entry; among entries tied at the smallest usage count, the one that
// has gone longest without being touched is evicted.
// A Cache must be created with [New] or [MustNew]; the zero value is not ready for use.
type Cache[K comparable, V any] struct {
	capacity int
	items    map[K]V     // key -> current value
	counts   map[K]int   // key -> usage count
	freqs    *buckets[K] // usage count -> keys at that count
	minFreq  int         // smallest usage count among resident keys; 0 when empty
	mu       sync.RWMutex
	onEvict  OnEvictFunc[K, V] // callback for evictions
	sfGroup  singleflight.Group
}

// New creates a new LFU cache with the given capacity.
// The capacity must be non-negative. A capacity of zero is valid and
// disables caching entirely: Set becomes a no-op and Get always misses.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity < 0 {
		return nil, errors.New("capacity must be non-negative")
	}

	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]V, capacity),
		counts:   make(map[K]int, capacity),
		freqs:    newBuckets[K](),
	}, nil
}

// MustNew creates a new LFU cache with the given capacity.
// It panics if the capacity is negative.
func MustNew[K comparable, V any](capacity int) *Cache[K, V] {
	cache, err := New[K, V](capacity)
	if err != nil {
		panic(err)
	}
	return cache
}

// Get retrieves a value from the cache by key.
// It returns the value and a boolean indicating whether the key was found.
// A hit increments the key's usage count; a miss leaves the cache untouched.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()

	var zero V

	val, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return zero, false
	}

	c.touch(key)
	c.mu.Unlock()

	return val, true
}

// Peek retrieves a value from the cache by key without incrementing its
// usage count. This is useful for checking a value without affecting
// eviction order. Returns the value and a boolean indicating whether the key was found.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V

	val, found := c.items[key]
	if !found {
		return zero, false
	}

	return val, true
}

// GetOrSet retrieves a value from the cache by key, or computes and sets it if not present.
// The compute function is only called if the key is not present in the cache.
// Note: if multiple goroutines call GetOrSet concurrently for the same missing key,
// compute may be called multiple times but only one result will be cached.
func (c *Cache[K, V]) GetOrSet(key K, compute func() (V, error)) (V, error) {
	// fast path: check if item exists
	if val, found := c.Get(key); found {
		return val, nil
	}

	// compute the value outside the lock to avoid deadlock if compute
	// calls back into the cache
	val, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	// check again in case it was added while we were computing
	if existing, found := c.items[key]; found {
		c.touch(key)
		c.mu.Unlock()
		return existing, nil
	}

	// add to cache
	evictedKey, evictedVal, hasEvicted := c.setLocked(key, val)
	onEvict := c.onEvict
	c.mu.Unlock()

	if hasEvicted && onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
	return val, nil
}

// GetOrSetSingleflight retrieves a value from the cache by key, or computes and sets it if not present.
// Unlike [Cache.GetOrSet], if multiple goroutines call GetOrSetSingleflight concurrently for the same
// missing key, the compute function is called exactly once and all callers receive the same result.
// This is useful when the compute function is expensive (e.g., database queries, API calls).
//
// The singleflight deduplication only applies to concurrent in-flight calls; once a value is cached,
// subsequent calls return the cached value without invoking singleflight.
func (c *Cache[K, V]) GetOrSetSingleflight(key K, compute func() (V, error)) (V, error) {
	// fast path: check if item exists
	if val, found := c.Get(key); found {
		return val, nil
	}

	// use singleflight to deduplicate concurrent computes for the same key
	sfKey := fmt.Sprintf("%v", key)
	result, err, _ := c.sfGroup.Do(sfKey, func() (any, error) {
		// check again inside singleflight in case another goroutine just cached it
		if val, found := c.Get(key); found {
			return val, nil
		}

		val, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// check again in case it was added while we were computing
		if existing, found := c.items[key]; found {
			c.touch(key)
			c.mu.Unlock()
			return existing, nil
		}

		evictedKey, evictedVal, hasEvicted := c.setLocked(key, val)
		onEvict := c.onEvict
		c.mu.Unlock()

		if hasEvicted && onEvict != nil {
			onEvict(evictedKey, evictedVal)
		}
		return val, nil
	})

	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Set adds or updates an item in the cache.
// If the key already exists, its value is updated and its usage count
// is incremented. If the cache is at capacity and the key is new, the
// least frequently used item is evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	evictedKey, evictedVal, hasEvicted := c.setLocked(key, value)
	onEvict := c.onEvict
	c.mu.Unlock()

	if hasEvicted && onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
}

// setLocked is an internal method that adds or updates an item in the cache.
// it assumes the mutex is already locked.
// Returns the evicted key/value and whether an eviction occurred.
func (c *Cache[K, V]) setLocked(key K, value V) (evictedKey K, evictedVal V, evicted bool) {
	// capacity zero means caching is disabled
	if c.capacity <= 0 {
		return
	}

	// updating an existing key never changes the cache size, so it must
	// never trigger an eviction; the existence check comes first
	if _, found := c.items[key]; found {
		c.items[key] = value
		c.touch(key)
		return
	}

	// if we're at capacity, evict the oldest key in the smallest bucket
	if len(c.items) >= c.capacity {
		if victim, ok := c.freqs.oldest(c.minFreq); ok {
			evictedKey = victim
			evictedVal = c.items[victim]
			evicted = true
			c.freqs.remove(c.counts[victim], victim)
			delete(c.items, victim)
			delete(c.counts, victim)
		}
	}

	// fresh keys always start at usage count 1
	c.items[key] = value
	c.counts[key] = 1
	c.minFreq = 1
	c.freqs.add(1, key)
	return
}

// touch moves key from its current frequency bucket to the next one up,
// advancing minFreq when the smallest bucket drains.
func (c *Cache[K, V]) touch(key K) {
	count := c.counts[key]
	if c.freqs.remove(count, key) && count == c.minFreq {
		// the key is re-added to bucket count+1 below, so the
		// smallest-frequency invariant holds on return
		c.minFreq = count + 1
	}
	c.counts[key] = count + 1
	c.freqs.add(count+1, key)
}

// removeLocked deletes key from all three indexes and repairs minFreq
// when the smallest bucket drained. it assumes the mutex is already
// locked and the key is resident.
func (c *Cache[K, V]) removeLocked(key K) {
	count := c.counts[key]
	emptied := c.freqs.remove(count, key)
	delete(c.items, key)
	delete(c.counts, key)
	if emptied && count == c.minFreq {
		c.minFreq, _ = c.freqs.lowest()
	}
}

// Remove deletes an item from the cache by key.
// It returns whether the key was found and removed.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	val, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return false
	}

	onEvict := c.onEvict
	c.removeLocked(key)
	c.mu.Unlock()

	if onEvict != nil {
		onEvict(key, val)
	}
	return true
}

// Len returns the current number of items in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Clear removes all items from the cache.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	onEvict := c.onEvict

	var evictedKeys []K
	var evictedVals []V
	if onEvict != nil {
		evictedKeys = c.freqs.keys()
		evictedVals = make([]V, len(evictedKeys))
		for i, k := range evictedKeys {
			evictedVals[i] = c.items[k]
		}
	}

	c.items = make(map[K]V, c.capacity)
	c.counts = make(map[K]int, c.capacity)
	c.freqs.reset()
	c.minFreq = 0
	c.mu.Unlock()

	for i, k := range evictedKeys {
		onEvict(k, evictedVals[i])
	}
}

// Contains checks if a key exists in the cache.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, found := c.items[key]
	return found
}

// Frequency returns the usage count tracked for the key and whether the
// key is resident. It does not count as a use.
func (c *Cache[K, V]) Frequency(key K) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, found := c.counts[key]
	return count, found
}

// Keys returns a slice of all keys in the cache.
// The order is from least frequently used to most frequently used;
// within a frequency, the key untouched longest comes first. The first
// key is therefore the next eviction candidate. Unlike the other
// accessors, Keys is O(n log n).
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.freqs.keys()
}

// Capacity returns the maximum capacity of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// OnEvict sets a callback function that will be called when an entry is evicted from the cache.
// The callback will receive the key and value of the evicted entry.
//
// The callback is invoked after the cache's internal lock is released and may be called
// concurrently from multiple goroutines. It must be safe for concurrent use.
func (c *Cache[K, V]) OnEvict(f OnEvictFunc[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvict = f
}
