// Package lfu provides generic, thread-safe LFU cache implementations.
//
// Three cache types are provided:
//
//   - [Cache]: A fixed-capacity LFU cache
//   - [Expirable]: An LFU cache with per-entry TTL expiration
//   - [Sharded]: An LFU cache distributed across independent shards
//
// When a cache is full, inserting a new key evicts the entry with the
// smallest usage count. Among entries tied at the smallest count, the
// one that has gone longest without being touched is evicted. Every
// operation runs in constant time regardless of cache size.
//
// All cache types are safe for concurrent use and support eviction
// callbacks.
//
// # Basic Usage
//
// Create a cache and store values:
//
//	cache := lfu.MustNew[string, int](100)
//	cache.Set("key", 42)
//	value, found := cache.Get("key")
//
// Every Get and every Set of an existing key increments that key's
// usage count. Use [Cache.Peek] to read a value without affecting it.
//
// A capacity of zero is valid and disables caching: Set becomes a
// no-op and Get always misses.
//
// # Memoization with GetOrSet
//
// Compute values on cache miss:
//
//	result, err := cache.GetOrSet("key", func() (int, error) {
//	    return expensiveComputation()
//	})
//
// Use [Cache.GetOrSetSingleflight] when concurrent callers should
// share a single computation for the same missing key.
//
// # Expirable Cache
//
// Create a cache where entries expire after a duration:
//
//	cache := lfu.MustNewExpirable[string, int](100, 5*time.Minute)
//	cache.Set("key", 42)
//	value, ttl, found := cache.GetWithTTL("key")
//
// Expired entries are removed lazily on access or during write
// operations. Call [Expirable.RemoveExpired] to explicitly purge all
// expired entries.
//
// # Eviction Callbacks
//
// Register a callback to be notified when entries are evicted:
//
//	cache.OnEvict(func(key string, value int) {
//	    fmt.Printf("evicted: %s=%d\n", key, value)
//	})
//
// Callbacks are invoked for capacity evictions, explicit removals via
// [Cache.Remove], and [Cache.Clear]. For [Expirable.Clear], callbacks
// are only invoked for entries that have not yet expired.
package lfu
