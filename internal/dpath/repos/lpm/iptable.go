package lpm

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/netaccel/direct-path/internal/dpath/common/netaddr"
	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// IPTable is an IPv4 prefix set keyed by domain.IPKey. It backs both the
// blacklist and the IP whitelist.
type IPTable struct {
	mu       sync.RWMutex
	tbl      *bart.Table[struct{}]
	capacity int
}

// NewIPTable returns an empty table with room for capacity prefixes.
func NewIPTable(capacity int) *IPTable {
	return &IPTable{tbl: new(bart.Table[struct{}]), capacity: capacity}
}

func ipPrefix(k domain.IPKey) (netip.Prefix, error) {
	masked, err := domain.NewIPKey(k.IPv4, k.PrefixLen)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %v", ErrInvalidPrefix, err)
	}
	return netip.PrefixFrom(netaddr.ToAddr(masked.IPv4), int(masked.PrefixLen)), nil
}

// Insert adds a prefix. Host bits beyond the prefix length are ignored and
// re-inserting a stored prefix is a no-op.
func (t *IPTable) Insert(k domain.IPKey) error {
	pfx, err := ipPrefix(k)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tbl.Get(pfx); ok {
		return nil
	}
	if full(t.tbl.Size(), t.capacity) {
		return ErrTableFull
	}
	t.tbl.Insert(pfx, struct{}{})
	return nil
}

// Delete removes the exact prefix.
func (t *IPTable) Delete(k domain.IPKey) error {
	pfx, err := ipPrefix(k)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tbl.Get(pfx); !ok {
		return ErrNotFound
	}
	t.tbl.Delete(pfx)
	return nil
}

// Contains reports whether any stored prefix covers ip.
func (t *IPTable) Contains(ip uint32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Contains(netaddr.ToAddr(ip))
}

// Match returns the longest stored prefix covering ip.
func (t *IPTable) Match(ip uint32) (domain.IPKey, bool) {
	t.mu.RLock()
	pfx, _, ok := t.tbl.LookupPrefixLPM(netip.PrefixFrom(netaddr.ToAddr(ip), 32))
	t.mu.RUnlock()
	if !ok {
		return domain.IPKey{}, false
	}
	plen := uint32(pfx.Bits())
	return domain.IPKey{PrefixLen: plen, IPv4: netaddr.Mask(ip, plen)}, true
}

// Len returns the number of stored prefixes.
func (t *IPTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Size()
}

// Cap returns the table capacity.
func (t *IPTable) Cap() int { return t.capacity }

// Clear removes all prefixes.
func (t *IPTable) Clear() {
	t.mu.Lock()
	t.tbl = new(bart.Table[struct{}])
	t.mu.Unlock()
}

// Walk visits every stored prefix until fn returns false.
func (t *IPTable) Walk(fn func(domain.IPKey) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for pfx := range t.tbl.All4() {
		ip, _ := netaddr.FromAddr(pfx.Addr())
		if !fn(domain.IPKey{PrefixLen: uint32(pfx.Bits()), IPv4: ip}) {
			return
		}
	}
}
