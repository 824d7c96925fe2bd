package ipmatch

import "github.com/netaccel/direct-path/internal/dpath/domain"

// PrefixSet is a read-only view of an IP trie (blacklist or whitelist).
type PrefixSet interface {
	Contains(ip uint32) bool
}

// HotpathCache holds promoted flows.
type HotpathCache interface {
	Contains(ip uint32) bool
	Promote(ip uint32, now uint64)
}

// PreCache holds whitelisted flows awaiting promotion.
type PreCache interface {
	Get(ip uint32) (*domain.PreCacheEntry, bool)
	Seed(ip uint32, now uint64) *domain.PreCacheEntry
}
