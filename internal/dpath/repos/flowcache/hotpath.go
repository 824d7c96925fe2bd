package flowcache

import "github.com/netaccel/direct-path/internal/dpath/domain"

// HotpathCache holds promoted IPv4 flows. The value is the promotion time in
// nanoseconds; presence alone means accelerate.
type HotpathCache struct {
	t *table[uint32, uint64]
}

// NewHotpathCache returns a cache holding at most size addresses.
func NewHotpathCache(size int) (*HotpathCache, error) {
	t, err := newTable[uint32, uint64](size)
	if err != nil {
		return nil, err
	}
	return &HotpathCache{t: t}, nil
}

// Contains reports whether ip has been promoted, refreshing its recency.
func (c *HotpathCache) Contains(ip uint32) bool {
	_, ok := c.t.get(ip)
	return ok
}

// PromotedAt returns the promotion timestamp of ip.
func (c *HotpathCache) PromotedAt(ip uint32) (uint64, bool) {
	return c.t.get(ip)
}

// Promote records ip as promoted at now.
func (c *HotpathCache) Promote(ip uint32, now uint64) {
	c.t.add(ip, now)
}

func (c *HotpathCache) Remove(ip uint32) bool { return c.t.remove(ip) }
func (c *HotpathCache) Len() int              { return c.t.len() }
func (c *HotpathCache) Purge()                { c.t.purge() }
func (c *HotpathCache) Stats() Stats          { return c.t.stats() }

// PreCache holds whitelisted flows awaiting promotion.
type PreCache struct {
	t *table[uint32, *domain.PreCacheEntry]
}

// NewPreCache returns a cache holding at most size addresses.
func NewPreCache(size int) (*PreCache, error) {
	t, err := newTable[uint32, *domain.PreCacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &PreCache{t: t}, nil
}

// Get returns the entry for ip. Callers count packets with entry.Hit.
func (c *PreCache) Get(ip uint32) (*domain.PreCacheEntry, bool) {
	return c.t.get(ip)
}

// Seed starts tracking ip with a count of 1 first seen at now. If another
// packet seeded ip concurrently, the stored entry is returned instead.
func (c *PreCache) Seed(ip uint32, now uint64) *domain.PreCacheEntry {
	return c.t.peekOrAdd(ip, domain.NewPreCacheEntry(now))
}

func (c *PreCache) Remove(ip uint32) bool { return c.t.remove(ip) }
func (c *PreCache) Len() int              { return c.t.len() }
func (c *PreCache) Purge()                { c.t.purge() }
func (c *PreCache) Stats() Stats          { return c.t.stats() }
