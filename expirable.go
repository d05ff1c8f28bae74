package lfu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirableItem holds a cached value and its absolute expiry time.
type expirableItem[V any] struct {
	val    V
	expiry time.Time
}

// Expirable represents a thread-safe, fixed-capacity LFU cache with expiry functionality.
// Each entry has an absolute expiration time set when written via [Expirable.Set] or
// [Expirable.GetOrSet]. The TTL is not refreshed on reads (no sliding expiration).
// Capacity evictions follow the same LFU policy as [Cache]; expired entries are
// removed lazily on access, so an expired entry may also be evicted as the LFU victim.
// An Expirable must be created with [NewExpirable] or [MustNewExpirable]; the zero value is not ready for use.
type Expirable[K comparable, V any] struct {
	capacity int
	items    map[K]*expirableItem[V]
	counts   map[K]int   // key -> usage count
	freqs    *buckets[K] // usage count -> keys at that count
	minFreq  int         // smallest usage count among resident keys; 0 when empty
	mu       sync.RWMutex
	ttl      time.Duration
	timeNow  func() time.Time  // for testing
	onEvict  OnEvictFunc[K, V] // callback for evictions
	sfGroup  singleflight.Group
}

// setOptions holds optional parameters for Set operations.
type setOptions struct {
	ttl time.Duration
}

// SetOption is a functional option for [Expirable.Set], [Expirable.GetOrSet],
// and [Expirable.GetOrSetSingleflight].
type SetOption func(*setOptions)

// WithTTL sets a custom TTL for the entry being set, overriding the cache's default TTL.
// If ttl is zero or negative, the cache's default TTL is used instead.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

// NewExpirable creates a new LFU cache with the given capacity and TTL.
// Each entry expires a fixed duration after it is written via Set or GetOrSet.
// Reads (Get, Peek, GetWithTTL) do not extend an entry's TTL.
// The capacity must be greater than zero, and the TTL must be greater than zero.
func NewExpirable[K comparable, V any](capacity int, ttl time.Duration) (*Expirable[K, V], error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	if ttl <= 0 {
		return nil, errors.New("TTL must be greater than zero")
	}

	return &Expirable[K, V]{
		capacity: capacity,
		items:    make(map[K]*expirableItem[V], capacity),
		counts:   make(map[K]int, capacity),
		freqs:    newBuckets[K](),
		ttl:      ttl,
		timeNow:  time.Now,
	}, nil
}

// MustNewExpirable creates a new LFU cache with the given capacity and TTL.
// It panics if the capacity or TTL is less than or equal to zero.
func MustNewExpirable[K comparable, V any](capacity int, ttl time.Duration) *Expirable[K, V] {
	cache, err := NewExpirable[K, V](capacity, ttl)
	if err != nil {
		panic(err)
	}
	return cache
}

// Get retrieves a value from the cache by key.
// It returns the value and a boolean indicating whether the key was found and not expired.
// A hit increments the key's usage count. Expired items are removed when accessed.
func (c *Expirable[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()

	var zero V

	e, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return zero, false
	}

	// check if the entry has expired
	if c.timeNow().After(e.expiry) {
		val := e.val
		onEvict := c.onEvict
		c.removeLocked(key)
		c.mu.Unlock()

		if onEvict != nil {
			onEvict(key, val)
		}
		return zero, false
	}

	c.touch(key)
	val := e.val
	c.mu.Unlock()

	return val, true
}

// Peek retrieves a value from the cache by key without incrementing its
// usage count. This is useful for checking a value without affecting
// eviction order. Returns the value and a boolean indicating whether the key
// was found and not expired.
//
// Note: Unlike [Expirable.Get], expired items are not removed from the cache.
// Use [Expirable.RemoveExpired] to explicitly purge expired entries.
func (c *Expirable[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V

	e, found := c.items[key]
	if !found {
		return zero, false
	}

	if c.timeNow().After(e.expiry) {
		return zero, false
	}

	return e.val, true
}

// GetWithTTL retrieves a value and its remaining TTL from the cache by key.
// It returns the value, remaining TTL, and a boolean indicating whether the key was found and not expired.
// A hit increments the key's usage count. Expired items are removed when accessed.
func (c *Expirable[K, V]) GetWithTTL(key K) (V, time.Duration, bool) {
	c.mu.Lock()

	var zero V

	e, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return zero, 0, false
	}

	now := c.timeNow()
	// check if the entry has expired
	if now.After(e.expiry) {
		val := e.val
		onEvict := c.onEvict
		c.removeLocked(key)
		c.mu.Unlock()

		if onEvict != nil {
			onEvict(key, val)
		}
		return zero, 0, false
	}

	c.touch(key)

	// calculate remaining TTL
	ttl := e.expiry.Sub(now)
	if ttl < 0 {
		ttl = 0
	}
	val := e.val
	c.mu.Unlock()

	return val, ttl, true
}

// GetOrSet retrieves a value from the cache by key, or computes and sets it if not present or expired.
// The compute function is only called if the key is not present in the cache or is expired.
// Note: if multiple goroutines call GetOrSet concurrently for the same missing/expired key,
// compute may be called multiple times but only one result will be cached.
//
// Options can be passed to customize the entry, such as [WithTTL] to override
// the cache's default TTL for this specific entry.
func (c *Expirable[K, V]) GetOrSet(key K, compute func() (V, error), opts ...SetOption) (V, error) {
	// fast path: check if item exists and is not expired
	if val, found := c.Get(key); found {
		return val, nil
	}

	opt := setOptions{}
	for _, o := range opts {
		o(&opt)
	}
	ttl := c.ttl
	if opt.ttl > 0 {
		ttl = opt.ttl
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
	e, found := c.items[key]
	var expiredKey K
	var expiredVal V
	expired := false
	if found {
		if !c.timeNow().After(e.expiry) {
			c.touch(key)
			val := e.val
			c.mu.Unlock()
			return val, nil
		}
		// expired entry, remove it and save for callback
		expiredKey, expiredVal, expired = key, e.val, true
		c.removeLocked(key)
	}

	// add to cache
	evictedKey, evictedVal, hasEvicted := c.setLocked(key, val, ttl)
	onEvict := c.onEvict
	c.mu.Unlock()

	if onEvict != nil {
		if expired {
			onEvict(expiredKey, expiredVal)
		}
		if hasEvicted {
			onEvict(evictedKey, evictedVal)
		}
	}
	return val, nil
}

// GetOrSetSingleflight retrieves a value from the cache by key, or computes and sets it if not present or expired.
// Unlike [Expirable.GetOrSet], if multiple goroutines call GetOrSetSingleflight concurrently for the same
// missing/expired key, the compute function is called exactly once and all callers receive the same result.
// This is useful when the compute function is expensive (e.g., database queries, API calls).
//
// The singleflight deduplication only applies to concurrent in-flight calls; once a value is cached,
// subsequent calls return the cached value without invoking singleflight.
//
// Options can be passed to customize the entry, such as [WithTTL] to override
// the cache's default TTL for this specific entry.
func (c *Expirable[K, V]) GetOrSetSingleflight(key K, compute func() (V, error), opts ...SetOption) (V, error) {
	// fast path: check if item exists and is not expired
	if val, found := c.Get(key); found {
		return val, nil
	}

	opt := setOptions{}
	for _, o := range opts {
		o(&opt)
	}
	ttl := c.ttl
	if opt.ttl > 0 {
		ttl = opt.ttl
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
		e, found := c.items[key]
		var expiredKey K
		var expiredVal V
		expired := false
		if found {
			if !c.timeNow().After(e.expiry) {
				c.touch(key)
				existingVal := e.val
				c.mu.Unlock()
				return existingVal, nil
			}
			// expired entry, remove it and save for callback
			expiredKey, expiredVal, expired = key, e.val, true
			c.removeLocked(key)
		}

		evictedKey, evictedVal, hasEvicted := c.setLocked(key, val, ttl)
		onEvict := c.onEvict
		c.mu.Unlock()

		if onEvict != nil {
			if expired {
				onEvict(expiredKey, expiredVal)
			}
			if hasEvicted {
				onEvict(evictedKey, evictedVal)
			}
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
// If the key already exists, its value and expiry are updated and its
// usage count is incremented. If the cache is at capacity and the key
// is new, the least frequently used item is evicted.
// Expired items are removed lazily on access or via RemoveExpired.
//
// Options can be passed to customize the entry, such as [WithTTL] to override
// the cache's default TTL for this specific entry.
func (c *Expirable[K, V]) Set(key K, value V, opts ...SetOption) {
	opt := setOptions{}
	for _, o := range opts {
		o(&opt)
	}

	ttl := c.ttl
	if opt.ttl > 0 {
		ttl = opt.ttl
	}

	c.mu.Lock()
	evictedKey, evictedVal, hasEvicted := c.setLocked(key, value, ttl)
	onEvict := c.onEvict
	c.mu.Unlock()

	if hasEvicted && onEvict != nil {
		onEvict(evictedKey, evictedVal)
	}
}

// setLocked is an internal method that adds or updates an item in the cache.
// it assumes the mutex is already locked.
// Returns the evicted key/value and whether an eviction occurred.
func (c *Expirable[K, V]) setLocked(key K, value V, ttl time.Duration) (evictedKey K, evictedVal V, evicted bool) {
	// if key exists, update value and expiry and bump its usage count
	if e, found := c.items[key]; found {
		e.val = value
		e.expiry = c.timeNow().Add(ttl)
		c.touch(key)
		return
	}

	// if we're at capacity, evict the oldest key in the smallest bucket
	if len(c.items) >= c.capacity {
		if victim, ok := c.freqs.oldest(c.minFreq); ok {
			evictedKey = victim
			evictedVal = c.items[victim].val
			evicted = true
			c.freqs.remove(c.counts[victim], victim)
			delete(c.items, victim)
			delete(c.counts, victim)
		}
	}

	// fresh keys always start at usage count 1
	c.items[key] = &expirableItem[V]{
		val:    value,
		expiry: c.timeNow().Add(ttl),
	}
	c.counts[key] = 1
	c.minFreq = 1
	c.freqs.add(1, key)
	return
}

// touch moves key from its current frequency bucket to the next one up,
// advancing minFreq when the smallest bucket drains.
func (c *Expirable[K, V]) touch(key K) {
	count := c.counts[key]
	if c.freqs.remove(count, key) && count == c.minFreq {
		c.minFreq = count + 1
	}
	c.counts[key] = count + 1
	c.freqs.add(count+1, key)
}

// removeLocked deletes key from all three indexes and repairs minFreq
// when the smallest bucket drained. it assumes the mutex is already
// locked and the key is resident.
func (c *Expirable[K, V]) removeLocked(key K) {
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
func (c *Expirable[K, V]) Remove(key K) bool {
	c.mu.Lock()
	e, found := c.items[key]
	if !found {
		c.mu.Unlock()
		return false
	}

	val := e.val
	onEvict := c.onEvict
	c.removeLocked(key)
	c.mu.Unlock()

	if onEvict != nil {
		onEvict(key, val)
	}
	return true
}

// RemoveExpired removes all expired entries from the cache and returns
// the number of entries removed. The eviction callback, if set, is
// invoked for each removed entry.
func (c *Expirable[K, V]) RemoveExpired() int {
	c.mu.Lock()
	now := c.timeNow()
	onEvict := c.onEvict

	var expiredKeys []K
	var expiredVals []V
	for k, e := range c.items {
		if now.After(e.expiry) {
			expiredKeys = append(expiredKeys, k)
			expiredVals = append(expiredVals, e.val)
		}
	}
	for _, k := range expiredKeys {
		c.removeLocked(k)
	}
	c.mu.Unlock()

	if onEvict != nil {
		for i, k := range expiredKeys {
			onEvict(k, expiredVals[i])
		}
	}
	return len(expiredKeys)
}

// Len returns the current number of non-expired items in the cache.
//
// Note: This method does not remove expired entries; it only excludes them from the count.
// Use [Expirable.RemoveExpired] to explicitly purge expired entries.
func (c *Expirable[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	now := c.timeNow()

	for _, e := range c.items {
		if !now.After(e.expiry) {
			count++
		}
	}

	return count
}

// Clear removes all items from the cache.
//
// If an eviction callback is set, it is called only for entries that have not
// yet expired at the time of clearing.
func (c *Expirable[K, V]) Clear() {
	c.mu.Lock()
	onEvict := c.onEvict

	var evictedKeys []K
	var evictedVals []V
	if onEvict != nil {
		now := c.timeNow()
		for _, k := range c.freqs.keys() {
			if e := c.items[k]; !now.After(e.expiry) {
				evictedKeys = append(evictedKeys, k)
				evictedVals = append(evictedVals, e.val)
			}
		}
	}

	c.items = make(map[K]*expirableItem[V], c.capacity)
	c.counts = make(map[K]int, c.capacity)
	c.freqs.reset()
	c.minFreq = 0
	c.mu.Unlock()

	for i, k := range evictedKeys {
		onEvict(k, evictedVals[i])
	}
}

// Contains checks if a key exists in the cache and is not expired.
//
// Note: This method does not remove expired entries from the cache.
// Use [Expirable.RemoveExpired] to explicitly purge expired entries.
func (c *Expirable[K, V]) Contains(key K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.items[key]
	if !found {
		return false
	}

	return !c.timeNow().After(e.expiry)
}

// Frequency returns the usage count tracked for the key and whether the
// key is resident and not expired. It does not count as a use.
func (c *Expirable[K, V]) Frequency(key K) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.items[key]
	if !found || c.timeNow().After(e.expiry) {
		return 0, false
	}
	return c.counts[key], true
}

// Keys returns a slice of all keys in the cache that haven't expired.
// The order is from least frequently used to most frequently used;
// within a frequency, the key untouched longest comes first.
func (c *Expirable[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.timeNow()
	keys := make([]K, 0, len(c.items))

	for _, k := range c.freqs.keys() {
		if !now.After(c.items[k].expiry) {
			keys = append(keys, k)
		}
	}

	return keys
}

// Capacity returns the maximum capacity of the cache.
func (c *Expirable[K, V]) Capacity() int {
	return c.capacity
}

// TTL returns the time-to-live duration for cache entries.
func (c *Expirable[K, V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// SetTTL updates the TTL for future cache entries.
// It does not affect existing entries.
func (c *Expirable[K, V]) SetTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("TTL must be greater than zero")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	return nil
}

// OnEvict sets a callback function that will be called when an entry is evicted from the cache.
// The callback will receive the key and value of the evicted entry.
//
// The callback is invoked after the cache's internal lock is released and may be called
// concurrently from multiple goroutines. It must be safe for concurrent use.
func (c *Expirable[K, V]) OnEvict(f OnEvictFunc[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onEvict = f
}
