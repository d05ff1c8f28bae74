package lfu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharded_New(t *testing.T) {
	tests := map[string]struct {
		capacity    int
		expectError bool
	}{
		"valid capacity": {
			capacity:    100,
			expectError: false,
		},
		"zero capacity": {
			capacity:    0,
			expectError: true,
		},
		"negative capacity": {
			capacity:    -1,
			expectError: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := require.New(t)

			cache, err := NewSharded[string, int](tc.capacity)
			if tc.expectError {
				r.Error(err)
				r.Nil(cache)
			} else {
				r.NoError(err)
				r.NotNil(cache)
				r.Equal(tc.capacity, cache.Capacity())
				r.Equal(DefaultShardCount, cache.ShardCount())
			}
		})
	}
}

func TestSharded_NewWithCount(t *testing.T) {
	tests := map[string]struct {
		capacity       int
		shardCount     int
		expectError    bool
		wantShardCount int // expected shard count after clamping (0 means use shardCount)
	}{
		"valid capacity and shard count": {
			capacity:    100,
			shardCount:  8,
			expectError: false,
		},
		"zero capacity": {
			capacity:    0,
			shardCount:  8,
			expectError: true,
		},
		"zero shard count": {
			capacity:    100,
			shardCount:  0,
			expectError: true,
		},
		"negative shard count": {
			capacity:    100,
			shardCount:  -1,
			expectError: true,
		},
		"more shards than capacity": {
			capacity:       4,
			shardCount:     16,
			expectError:    false,
			wantShardCount: 4, // clamped to capacity
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			r := require.New(t)

			cache, err := NewShardedWithCount[string, int](tc.capacity, tc.shardCount)
			if tc.expectError {
				r.Error(err)
				r.Nil(cache)
				return
			}

			r.NoError(err)
			r.NotNil(cache)
			r.Equal(tc.capacity, cache.Capacity())

			want := tc.shardCount
			if tc.wantShardCount != 0 {
				want = tc.wantShardCount
			}
			r.Equal(want, cache.ShardCount())

			// per-shard capacities sum to the total
			total := 0
			for _, shard := range cache.shards {
				r.GreaterOrEqual(shard.Capacity(), 1)
				total += shard.Capacity()
			}
			r.Equal(tc.capacity, total)
		})
	}
}

func TestSharded_MustNew(t *testing.T) {
	r := require.New(t)

	r.Panics(func() { MustNewSharded[string, int](0) })
	r.Panics(func() { MustNewShardedWithCount[string, int](10, 0) })
	r.NotNil(MustNewSharded[string, int](10))
}

func TestSharded_GetSet(t *testing.T) {
	r := require.New(t)

	cache := MustNewSharded[string, int](4000)

	const n = 1000
	for i := 0; i < n; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), i)
	}
	r.Equal(n, cache.Len())
	r.Len(cache.Keys(), n)

	for i := 0; i < n; i++ {
		val, found := cache.Get(fmt.Sprintf("key-%d", i))
		r.True(found)
		r.Equal(i, val)
	}

	_, found := cache.Get("missing")
	r.False(found)
}

func TestSharded_FrequencyAndPeek(t *testing.T) {
	r := require.New(t)

	cache := MustNewSharded[string, int](100)

	cache.Set("a", 1)
	cache.Get("a")
	cache.Peek("a")

	freq, found := cache.Frequency("a")
	r.True(found)
	r.Equal(2, freq)

	val, found := cache.Peek("a")
	r.True(found)
	r.Equal(1, val)
}

func TestSharded_RemoveAndClear(t *testing.T) {
	r := require.New(t)

	cache := MustNewSharded[string, int](100)
	for i := 0; i < 50; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), i)
	}

	r.True(cache.Remove("key-0"))
	r.False(cache.Remove("key-0"))
	r.False(cache.Contains("key-0"))
	r.Equal(49, cache.Len())

	cache.Clear()
	r.Equal(0, cache.Len())
	r.Empty(cache.Keys())
}

func TestSharded_GetOrSet(t *testing.T) {
	r := require.New(t)

	cache := MustNewSharded[string, int](100)

	computeCount := 0
	val, err := cache.GetOrSet("a", func() (int, error) {
		computeCount++
		return 42, nil
	})
	r.NoError(err)
	r.Equal(42, val)

	val, err = cache.GetOrSet("a", func() (int, error) {
		computeCount++
		return 0, nil
	})
	r.NoError(err)
	r.Equal(42, val)
	r.Equal(1, computeCount)
}

func TestSharded_OnEvict(t *testing.T) {
	r := require.New(t)

	cache := MustNewShardedWithCount[int, int](16, 4)

	var evictions atomic.Int64
	cache.OnEvict(func(int, int) {
		evictions.Add(1)
	})

	const n = 200
	for i := 0; i < n; i++ {
		cache.Set(i, i)
	}

	// everything that no longer fits was reported evicted
	r.Equal(int64(n-cache.Len()), evictions.Load())
	r.LessOrEqual(cache.Len(), cache.Capacity())
}

func TestSharded_Concurrent(t *testing.T) {
	r := require.New(t)

	cache := MustNewSharded[int, int](1000)

	var wg sync.WaitGroup
	const goroutines = 8
	const opsPerGoroutine = 500

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < opsPerGoroutine; i++ {
				key := g*opsPerGoroutine + i
				cache.Set(key, key)
				cache.Get(key)
				cache.Contains(key)
			}
		}(g)
	}
	wg.Wait()

	r.LessOrEqual(cache.Len(), cache.Capacity())
	r.Greater(cache.Len(), 0)
}
