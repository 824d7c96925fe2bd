// Package ipmatch decides whether an IPv4 flow takes the direct path.
//
// Lookup order for one address: blacklist, private ranges, hotpath cache,
// pre-cache, IP whitelist. A whitelist hit seeds the pre-cache and is
// accelerated immediately; a pre-cached flow moves to the hotpath cache once
// it has carried enough packets over a long enough span.
package ipmatch

import (
	"errors"
	"time"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	"github.com/netaccel/direct-path/internal/dpath/common/netaddr"
	"github.com/netaccel/direct-path/internal/dpath/domain"
)

type Engine struct {
	blacklist  PrefixSet
	whitelist  PrefixSet
	hotpath    HotpathCache
	preCache   PreCache
	clock      clock.Clock
	minPackets uint32
	minAge     uint64
}

type Options struct {
	Blacklist PrefixSet
	Whitelist PrefixSet
	Hotpath   HotpathCache
	PreCache  PreCache
	Clock     clock.Clock

	// MinPackets and MinAge gate promotion. Zero values use
	// domain.HotpathMinPackets and domain.HotpathMinAge.
	MinPackets uint32
	MinAge     time.Duration
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Blacklist == nil || opts.Whitelist == nil || opts.Hotpath == nil || opts.PreCache == nil {
		return nil, errors.New("ipmatch: blacklist, whitelist, hotpath and pre-cache are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.MinPackets == 0 {
		opts.MinPackets = domain.HotpathMinPackets
	}
	if opts.MinAge <= 0 {
		opts.MinAge = domain.HotpathMinAge
	}
	return &Engine{
		blacklist:  opts.Blacklist,
		whitelist:  opts.Whitelist,
		hotpath:    opts.Hotpath,
		preCache:   opts.PreCache,
		clock:      opts.Clock,
		minPackets: opts.MinPackets,
		minAge:     uint64(opts.MinAge),
	}, nil
}

// Classify reports whether the flow between src and dst is accelerated.
// The destination is tried first.
func (e *Engine) Classify(src, dst uint32) bool {
	if netaddr.IsPrivate(src) && netaddr.IsPrivate(dst) {
		return false
	}
	if e.MatchOne(dst) {
		return true
	}
	return e.MatchOne(src)
}

// MatchOne runs the per-address lookup chain.
func (e *Engine) MatchOne(ip uint32) bool {
	if e.blacklist.Contains(ip) {
		return false
	}
	if netaddr.IsPrivate(ip) {
		return false
	}
	if e.hotpath.Contains(ip) {
		return true
	}

	if entry, ok := e.preCache.Get(ip); ok {
		count := entry.Hit()
		now := clock.NowNanos(e.clock)
		if count >= e.minPackets && now > entry.FirstSeen && now-entry.FirstSeen > e.minAge {
			e.hotpath.Promote(ip, now)
		}
		return true
	}

	if e.whitelist.Contains(ip) {
		e.preCache.Seed(ip, clock.NowNanos(e.clock))
		return true
	}
	return false
}
