// Package domainmatch decides whether a decoded query name is whitelisted.
package domainmatch

import (
	"errors"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// Whitelist is the read-only view of the domain whitelist trie.
type Whitelist interface {
	Lookup(k *domain.DomainKey) bool
}

// Cache holds keys already confirmed against the whitelist.
type Cache interface {
	Hit(k *domain.DomainKey) (uint32, bool)
	Seed(k *domain.DomainKey)
}

// Engine checks the domain cache, then the whitelist. Unlike ipmatch there is
// no promotion tier: the first whitelist hit is cached.
type Engine struct {
	whitelist Whitelist
	cache     Cache
}

func NewEngine(whitelist Whitelist, cache Cache) (*Engine, error) {
	if whitelist == nil || cache == nil {
		return nil, errors.New("domainmatch: whitelist and cache are required")
	}
	return &Engine{whitelist: whitelist, cache: cache}, nil
}

// MatchDomain reports whether k, or a parent domain of it, is whitelisted.
func (e *Engine) MatchDomain(k *domain.DomainKey) bool {
	if _, ok := e.cache.Hit(k); ok {
		return true
	}
	if e.whitelist.Lookup(k) {
		e.cache.Seed(k)
		return true
	}
	return false
}
