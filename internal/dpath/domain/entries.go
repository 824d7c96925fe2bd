package domain

import (
	"encoding/binary"
	"sync/atomic"
)

// PreCacheEntrySize matches the C layout {u64 first_seen; u32 count} with
// its trailing padding.
const PreCacheEntrySize = 16

// PreCacheEntry tracks a whitelisted flow that has not been promoted yet.
// FirstSeen is fixed at creation. The packet counter is only advanced with
// an atomic add and may be hit from many goroutines at once.
type PreCacheEntry struct {
	FirstSeen uint64
	count     atomic.Uint32
}

// NewPreCacheEntry returns an entry seen once at now.
func NewPreCacheEntry(now uint64) *PreCacheEntry {
	e := &PreCacheEntry{FirstSeen: now}
	e.count.Store(1)
	return e
}

// Hit records one packet and returns the post-increment count.
func (e *PreCacheEntry) Hit() uint32 {
	return e.count.Add(1)
}

// Count returns the current packet count.
func (e *PreCacheEntry) Count() uint32 {
	return e.count.Load()
}

// MarshalBinary encodes the entry in the table value layout.
func (e *PreCacheEntry) MarshalBinary() ([]byte, error) {
	b := make([]byte, PreCacheEntrySize)
	binary.NativeEndian.PutUint64(b[0:8], e.FirstSeen)
	binary.NativeEndian.PutUint32(b[8:12], e.Count())
	return b, nil
}

// HitCounter is the domain cache value.
type HitCounter struct {
	n atomic.Uint32
}

// NewHitCounter returns a counter starting at 1.
func NewHitCounter() *HitCounter {
	c := &HitCounter{}
	c.n.Store(1)
	return c
}

// Inc adds one hit and returns the new value.
func (c *HitCounter) Inc() uint32 { return c.n.Add(1) }

// Load returns the current value.
func (c *HitCounter) Load() uint32 { return c.n.Load() }
