package lfu

import "slices"

// bucketNode is an intrusive doubly-linked list node inside a frequency
// bucket.
type bucketNode[K comparable] struct {
	key  K
	prev *bucketNode[K]
	next *bucketNode[K]
}

// bucket is an insertion-ordered set of keys sharing a usage count.
type bucket[K comparable] struct {
	head *bucketNode[K] // most recently added
	tail *bucketNode[K] // added longest ago, next eviction candidate at this count
}

// buckets indexes resident keys by usage count. Each count maps to an
// ordered bucket, and a handle map gives O(1) removal of an arbitrary
// key. A key lives in exactly one bucket at a time.
type buckets[K comparable] struct {
	nodes   map[K]*bucketNode[K]
	byCount map[int]*bucket[K]
}

func newBuckets[K comparable]() *buckets[K] {
	b := &buckets[K]{
		nodes:   make(map[K]*bucketNode[K]),
		byCount: make(map[int]*bucket[K]),
	}
	// every fresh key lands at count 1, so that bucket stays allocated
	// for the lifetime of the cache
	b.byCount[1] = &bucket[K]{}
	return b
}

// add inserts key as the newest member of the bucket for count,
// creating the bucket if absent.
func (b *buckets[K]) add(count int, key K) {
	n := &bucketNode[K]{key: key}
	b.nodes[key] = n

	bk := b.byCount[count]
	if bk == nil {
		bk = &bucket[K]{}
		b.byCount[count] = bk
	}

	n.next = bk.head
	if bk.head != nil {
		bk.head.prev = n
	}
	bk.head = n
	if bk.tail == nil {
		bk.tail = n
	}
}

// remove unlinks key from the bucket for count and reports whether that
// bucket is now empty. Emptied buckets are deallocated, except the
// bucket for count 1, which is reused on every fresh insertion.
func (b *buckets[K]) remove(count int, key K) bool {
	n, ok := b.nodes[key]
	if !ok {
		return false
	}
	delete(b.nodes, key)

	bk := b.byCount[count]
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		bk.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		bk.tail = n.prev
	}
	n.prev = nil
	n.next = nil

	if bk.head != nil {
		return false
	}
	if count != 1 {
		delete(b.byCount, count)
	}
	return true
}

// oldest returns, without removing, the key that has been in the bucket
// for count the longest.
func (b *buckets[K]) oldest(count int) (K, bool) {
	bk := b.byCount[count]
	if bk == nil || bk.tail == nil {
		var zero K
		return zero, false
	}
	return bk.tail.key, true
}

// lowest returns the smallest count whose bucket is non-empty. It scans
// the allocated buckets, so it is O(distinct counts); the get/set hot
// paths never call it.
func (b *buckets[K]) lowest() (int, bool) {
	low := 0
	for count, bk := range b.byCount {
		if bk.head == nil {
			continue
		}
		if low == 0 || count < low {
			low = count
		}
	}
	return low, low != 0
}

// keys returns all resident keys in eviction order: ascending count,
// and within a count the key untouched longest first.
func (b *buckets[K]) keys() []K {
	counts := make([]int, 0, len(b.byCount))
	for count, bk := range b.byCount {
		if bk.head != nil {
			counts = append(counts, count)
		}
	}
	slices.Sort(counts)

	keys := make([]K, 0, len(b.nodes))
	for _, count := range counts {
		for n := b.byCount[count].tail; n != nil; n = n.prev {
			keys = append(keys, n.key)
		}
	}
	return keys
}

// reset drops every key and bucket, keeping the count-1 bucket allocated.
func (b *buckets[K]) reset() {
	clear(b.nodes)
	clear(b.byCount)
	b.byCount[1] = &bucket[K]{}
}
