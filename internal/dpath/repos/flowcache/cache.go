// Package flowcache holds the LRU tables of the packet path: the hotpath
// cache, the pre-cache and the domain cache. A capacity <= 0 yields a
// disabled table that stores nothing and always misses.
package flowcache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a best-effort snapshot of table metrics.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// table is an LRU with hit, miss and eviction counters.
type table[K comparable, V any] struct {
	lru       *lru.Cache[K, V]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func newTable[K comparable, V any](size int) (*table[K, V], error) {
	t := &table[K, V]{}
	if size <= 0 {
		return t, nil
	}
	// NewWithEvict observes capacity evictions as well as Purge.
	cache, err := lru.NewWithEvict(size, func(K, V) {
		t.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	t.lru = cache
	t.capacity = size
	return t, nil
}

// get refreshes recency on hit.
func (t *table[K, V]) get(k K) (V, bool) {
	if t.lru != nil {
		if v, ok := t.lru.Get(k); ok {
			t.hits.Add(1)
			return v, true
		}
	}
	t.misses.Add(1)
	var zero V
	return zero, false
}

// peekOrAdd inserts v unless k is present and returns the stored value.
func (t *table[K, V]) peekOrAdd(k K, v V) V {
	if t.lru == nil {
		return v
	}
	if prev, ok, _ := t.lru.PeekOrAdd(k, v); ok {
		return prev
	}
	return v
}

func (t *table[K, V]) add(k K, v V) {
	if t.lru != nil {
		t.lru.Add(k, v)
	}
}

func (t *table[K, V]) remove(k K) bool {
	if t.lru == nil {
		return false
	}
	return t.lru.Remove(k)
}

func (t *table[K, V]) len() int {
	if t.lru == nil {
		return 0
	}
	return t.lru.Len()
}

func (t *table[K, V]) purge() {
	if t.lru != nil {
		t.lru.Purge()
	}
}

func (t *table[K, V]) stats() Stats {
	return Stats{
		Capacity:  t.capacity,
		Size:      t.len(),
		Hits:      t.hits.Load(),
		Misses:    t.misses.Load(),
		Evictions: t.evictions.Load(),
	}
}
