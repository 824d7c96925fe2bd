package lpm

import (
	"fmt"
	"sync"

	"github.com/Asphaltt/lpmtrie"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

const domainKeyBits = domain.DomainMaxLen * 8

// Prefilter is a probabilistic set consulted before the domain trie.
// MightContain must never report false for a key passed to Add.
type Prefilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
	Clear()
}

// DomainTable is the domain whitelist: reversed wire-format names in an LPM
// trie, so that a stored name matches itself and every subdomain.
//
// Each entry's value is its own prefix length. A lookup whose longest match
// has the probe's length therefore found the exact key.
//
// With a prefilter attached, a lookup first probes the filter with every
// prefix of the key that could begin a stored entry. Stored entries are
// reversed wire names, so their last byte is the length of their leftmost
// label; only key positions holding one of those lengths are probed.
type DomainTable struct {
	mu       sync.RWMutex
	trie     lpmtrie.LpmTrie
	n        int
	capacity int

	prefilter Prefilter
	leads     [256]bool
	bypass    bool // a zero-length entry matches everything
}

// NewDomainTable returns an empty table with room for capacity names.
// prefilter may be nil.
func NewDomainTable(capacity int, prefilter Prefilter) *DomainTable {
	return &DomainTable{
		trie:      lpmtrie.New(domainKeyBits),
		capacity:  capacity,
		prefilter: prefilter,
	}
}

func trieKey(k *domain.DomainKey) lpmtrie.Key {
	return lpmtrie.Key{PrefixLen: int(k.PrefixLen), Data: k.Domain[:]}
}

// matchLen returns the prefix length of the longest stored entry covering key.
func (t *DomainTable) matchLen(key lpmtrie.Key) (int, bool) {
	v, ok := t.trie.Lookup(key)
	if !ok {
		return 0, false
	}
	plen, _ := v.(int)
	return plen, true
}

// Insert adds a reversed-domain key. Re-inserting a stored key is a no-op.
func (t *DomainTable) Insert(k domain.DomainKey) error {
	if k.PrefixLen > domainKeyBits || k.PrefixLen%8 != 0 {
		return fmt.Errorf("%w: prefixlen=%d", ErrInvalidPrefix, k.PrefixLen)
	}
	key := trieKey(&k)

	t.mu.Lock()
	defer t.mu.Unlock()
	if plen, ok := t.matchLen(key); ok && plen == key.PrefixLen {
		return nil
	}
	if full(t.n, t.capacity) {
		return ErrTableFull
	}
	t.trie.Insert(key, key.PrefixLen)
	t.n++

	if b := k.Bytes(); len(b) == 0 {
		t.bypass = true
	} else {
		t.leads[b[len(b)-1]] = true
		if t.prefilter != nil {
			t.prefilter.Add(b)
		}
	}
	return nil
}

// Lookup reports whether a stored name is a label-suffix of the key's name.
// The key is not modified.
func (t *DomainTable) Lookup(k *domain.DomainKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.mayMatch(k) {
		return false
	}
	_, ok := t.matchLen(trieKey(k))
	return ok
}

func (t *DomainTable) mayMatch(k *domain.DomainKey) bool {
	if t.prefilter == nil || t.bypass {
		return true
	}
	b := k.Bytes()
	for i := range b {
		if t.leads[b[i]] && t.prefilter.MightContain(b[:i+1]) {
			return true
		}
	}
	return false
}

// Len returns the number of stored names.
func (t *DomainTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.n
}

// Cap returns the table capacity.
func (t *DomainTable) Cap() int { return t.capacity }

// Clear removes every name and resets the prefilter.
func (t *DomainTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trie = lpmtrie.New(domainKeyBits)
	t.n = 0
	t.leads = [256]bool{}
	t.bypass = false
	if t.prefilter != nil {
		t.prefilter.Clear()
	}
}
