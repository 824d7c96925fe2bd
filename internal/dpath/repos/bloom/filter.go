// Package bloom provides the domain whitelist prefilter: a bloom filter over
// reversed wire-format names, sized from the whitelist capacity.
package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/netaccel/direct-path/internal/dpath/repos/lpm"
)

// Filter wraps a bits-and-blooms filter. Add and Clear take the write lock;
// MightContain takes the read lock.
type Filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

// New returns a filter sized for capacity entries at false-positive rate fpRate.
func New(capacity uint64, fpRate float64) *Filter {
	m, k := Size(capacity, fpRate)
	return &Filter{bf: bitsbloom.New(uint(m), uint(k))}
}

func (f *Filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *Filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

func (f *Filter) Clear() {
	f.mu.Lock()
	f.bf.ClearAll()
	f.mu.Unlock()
}

// FillRatio estimates the fraction of set bits, for stats logging.
func (f *Filter) FillRatio() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.bf.Cap() == 0 {
		return 0
	}
	return float64(f.bf.BitSet().Count()) / float64(f.bf.Cap())
}

var _ lpm.Prefilter = (*Filter)(nil)
