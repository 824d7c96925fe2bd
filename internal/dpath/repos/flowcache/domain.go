package flowcache

import "github.com/netaccel/direct-path/internal/dpath/domain"

// DomainCache holds reversed-domain keys already confirmed against the
// domain whitelist, each with a hit counter.
type DomainCache struct {
	t *table[domain.DomainKey, *domain.HitCounter]
}

// NewDomainCache returns a cache holding at most size keys.
func NewDomainCache(size int) (*DomainCache, error) {
	t, err := newTable[domain.DomainKey, *domain.HitCounter](size)
	if err != nil {
		return nil, err
	}
	return &DomainCache{t: t}, nil
}

// Hit increments the counter of a cached key. ok is false on miss.
func (c *DomainCache) Hit(k *domain.DomainKey) (uint32, bool) {
	hc, ok := c.t.get(*k)
	if !ok {
		return 0, false
	}
	return hc.Inc(), true
}

// Seed caches k with a count of 1.
func (c *DomainCache) Seed(k *domain.DomainKey) {
	c.t.peekOrAdd(*k, domain.NewHitCounter())
}

func (c *DomainCache) Len() int     { return c.t.len() }
func (c *DomainCache) Purge()       { c.t.purge() }
func (c *DomainCache) Stats() Stats { return c.t.stats() }
