package lfu

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

// Benchmark sizes to test different cache behaviors
var benchSizes = []int{100, 1_000, 10_000, 100_000}

// =============================================================================
// Cache Benchmarks
// =============================================================================

func BenchmarkCache_Get_Hit(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Get(i % size)
			}
		})
	}
}

func BenchmarkCache_Get_Miss(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)
			// leave cache empty

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Get(i)
			}
		})
	}
}

func BenchmarkCache_Set_New(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Set(i, i)
			}
		})
	}
}

func BenchmarkCache_Set_Existing(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Set(i%size, i)
			}
		})
	}
}

func BenchmarkCache_Set_Evict(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)
			// fill the cache so every new Set evicts
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Set(size+i, i)
			}
		})
	}
}

func BenchmarkCache_Mixed_80Read_20Write(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNew[int, int](size)
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			rng := rand.New(rand.NewSource(42))

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				key := rng.Intn(size * 2)
				if i%5 == 0 {
					cache.Set(key, i)
				} else {
					cache.Get(key)
				}
			}
		})
	}
}

func BenchmarkCache_Parallel_Mixed(b *testing.B) {
	cache := MustNew[int, int](10_000)
	for i := 0; i < 10_000; i++ {
		cache.Set(i, i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		i := 0
		for pb.Next() {
			key := rng.Intn(20_000)
			if i%5 == 0 {
				cache.Set(key, i)
			} else {
				cache.Get(key)
			}
			i++
		}
	})
}

// BenchmarkCache_Zipf simulates a realistic skewed access pattern where
// a small number of keys receive most of the traffic. LFU shines here:
// the hot keys accumulate high counts and are never evicted.
func BenchmarkCache_Zipf(b *testing.B) {
	const size = 10_000
	cache := MustNew[uint64, int](size)

	rng := rand.New(rand.NewSource(42))
	zipf := rand.NewZipf(rng, 1.2, 1, size*10)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		key := zipf.Uint64()
		if _, found := cache.Get(key); !found {
			cache.Set(key, i)
		}
	}
}

func BenchmarkCache_Allocs_Set(b *testing.B) {
	cache := MustNew[int, int](1_000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		cache.Set(i%2_000, i)
	}
}

// =============================================================================
// Sharded Benchmarks
// =============================================================================

func BenchmarkSharded_Parallel_Mixed(b *testing.B) {
	cache := MustNewSharded[int, int](10_000)
	for i := 0; i < 10_000; i++ {
		cache.Set(i, i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		i := 0
		for pb.Next() {
			key := rng.Intn(20_000)
			if i%5 == 0 {
				cache.Set(key, i)
			} else {
				cache.Get(key)
			}
			i++
		}
	})
}

// =============================================================================
// Expirable Benchmarks
// =============================================================================

func BenchmarkExpirable_Get_Hit(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNewExpirable[int, int](size, time.Hour)
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Get(i % size)
			}
		})
	}
}

func BenchmarkExpirable_Set_Evict(b *testing.B) {
	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			cache := MustNewExpirable[int, int](size, time.Hour)
			for i := 0; i < size; i++ {
				cache.Set(i, i)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				cache.Set(size+i, i)
			}
		})
	}
}

func BenchmarkExpirable_GetWithTTL(b *testing.B) {
	cache := MustNewExpirable[int, int](10_000, time.Hour)
	for i := 0; i < 10_000; i++ {
		cache.Set(i, i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		cache.GetWithTTL(i % 10_000)
	}
}
