package flowcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

func TestHotpathCache_PromoteAndEvict(t *testing.T) {
	c, err := NewHotpathCache(2)
	require.NoError(t, err)

	assert.False(t, c.Contains(1))
	c.Promote(1, 100)
	c.Promote(2, 200)
	assert.True(t, c.Contains(1)) // 1 is now most recent

	c.Promote(3, 300)
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Contains(2), "least recently used entry should be evicted")

	at, ok := c.PromotedAt(3)
	require.True(t, ok)
	assert.Equal(t, uint64(300), at)

	st := c.Stats()
	assert.Equal(t, 2, st.Capacity)
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestPreCache_SeedKeepsFirstEntry(t *testing.T) {
	c, err := NewPreCache(8)
	require.NoError(t, err)

	e := c.Seed(0x08080808, 10)
	assert.Equal(t, uint32(1), e.Count())

	again := c.Seed(0x08080808, 99)
	assert.Same(t, e, again)
	assert.Equal(t, uint64(10), again.FirstSeen)

	got, ok := c.Get(0x08080808)
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.Hit())

	assert.True(t, c.Remove(0x08080808))
	_, ok = c.Get(0x08080808)
	assert.False(t, ok)
}

func TestPreCache_ConcurrentHitsOnSharedEntry(t *testing.T) {
	c, err := NewPreCache(8)
	require.NoError(t, err)
	c.Seed(7, 0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if e, ok := c.Get(7); ok {
					e.Hit()
				}
			}
		}()
	}
	wg.Wait()

	e, ok := c.Get(7)
	require.True(t, ok)
	assert.Equal(t, uint32(4001), e.Count())
}

func TestDomainCache_HitCounting(t *testing.T) {
	c, err := NewDomainCache(4)
	require.NoError(t, err)

	k, err := domain.EncodeDomainKey("baidu.com")
	require.NoError(t, err)

	_, ok := c.Hit(&k)
	assert.False(t, ok)

	c.Seed(&k)
	n, ok := c.Hit(&k)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), n)

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestDisabledCaches(t *testing.T) {
	h, err := NewHotpathCache(0)
	require.NoError(t, err)
	h.Promote(1, 1)
	assert.False(t, h.Contains(1))
	assert.Equal(t, 0, h.Len())
	h.Purge()

	p, err := NewPreCache(-1)
	require.NoError(t, err)
	e := p.Seed(1, 5)
	assert.Equal(t, uint64(5), e.FirstSeen)
	_, ok := p.Get(1)
	assert.False(t, ok)
	assert.False(t, p.Remove(1))

	d, err := NewDomainCache(0)
	require.NoError(t, err)
	k := domain.DomainKey{PrefixLen: 8}
	d.Seed(&k)
	_, ok = d.Hit(&k)
	assert.False(t, ok)
	assert.Equal(t, Stats{Misses: 1}, d.Stats())
}
