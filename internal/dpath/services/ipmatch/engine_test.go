package ipmatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/repos/flowcache"
	"github.com/netaccel/direct-path/internal/dpath/repos/lpm"
)

const (
	ipGoogle  = 0x08080808 // 8.8.8.8
	ipCN      = 0x01000101 // 1.0.1.1
	ipLAN     = 0xC0A80102 // 192.168.1.2
	ipLAN2    = 0x0A000001 // 10.0.0.1
	ipUnknown = 0x5DB8D822 // 93.184.216.34
)

type fixture struct {
	engine    *Engine
	blacklist *lpm.IPTable
	whitelist *lpm.IPTable
	hotpath   *flowcache.HotpathCache
	preCache  *flowcache.PreCache
	clock     *clock.MockClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		blacklist: lpm.NewIPTable(domain.BlacklistSize),
		whitelist: lpm.NewIPTable(domain.IPWhitelistSize),
		clock:     &clock.MockClock{CurrentTime: time.Unix(1_700_000_000, 0)},
	}
	var err error
	f.hotpath, err = flowcache.NewHotpathCache(64)
	require.NoError(t, err)
	f.preCache, err = flowcache.NewPreCache(64)
	require.NoError(t, err)

	cidr, err := domain.NewIPKey(ipCN, 24)
	require.NoError(t, err)
	require.NoError(t, f.whitelist.Insert(cidr))
	require.NoError(t, f.whitelist.Insert(domain.HostKey(ipGoogle)))

	f.engine, err = NewEngine(Options{
		Blacklist: f.blacklist,
		Whitelist: f.whitelist,
		Hotpath:   f.hotpath,
		PreCache:  f.preCache,
		Clock:     f.clock,
	})
	require.NoError(t, err)
	return f
}

func TestClassify_PrivatePairNeverAccelerated(t *testing.T) {
	f := newFixture(t)
	// even a whitelisted private range does not help an intranet pair
	lan, err := domain.NewIPKey(ipLAN, 16)
	require.NoError(t, err)
	require.NoError(t, f.whitelist.Insert(lan))

	for _, pair := range [][2]uint32{
		{ipLAN, ipLAN2},
		{0x7F000001, ipLAN},
		{0xAC100001, 0xAC1FFFFF},
	} {
		assert.False(t, f.engine.Classify(pair[0], pair[1]), "%08x -> %08x", pair[0], pair[1])
	}
	assert.Equal(t, 0, f.preCache.Len())
}

func TestClassify_EitherDirection(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.engine.Classify(ipLAN, ipGoogle))
	assert.True(t, f.engine.Classify(ipCN, ipLAN))
	assert.False(t, f.engine.Classify(ipLAN, ipUnknown))
}

func TestMatchOne_BlacklistOverridesWhitelist(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.blacklist.Insert(domain.HostKey(ipGoogle)))

	assert.False(t, f.engine.MatchOne(ipGoogle))
	assert.Equal(t, 0, f.preCache.Len())

	// a blacklisted CIDR covers hosts already in the caches
	f.hotpath.Promote(ipCN, 1)
	cidr, _ := domain.NewIPKey(ipCN, 16)
	require.NoError(t, f.blacklist.Insert(cidr))
	assert.False(t, f.engine.MatchOne(ipCN))
}

func TestMatchOne_PrivateRejectedBeforeCaches(t *testing.T) {
	f := newFixture(t)
	f.hotpath.Promote(ipLAN, 1)
	assert.False(t, f.engine.MatchOne(ipLAN))
}

func TestMatchOne_FirstPacketAccelerated(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.engine.MatchOne(ipCN))
	entry, ok := f.preCache.Get(ipCN)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Count())
	assert.Equal(t, clock.NowNanos(f.clock), entry.FirstSeen)
	assert.False(t, f.hotpath.Contains(ipCN))

	assert.False(t, f.engine.MatchOne(ipUnknown))
	_, ok = f.preCache.Get(ipUnknown)
	assert.False(t, ok)
}

func TestMatchOne_PromotionThreshold(t *testing.T) {
	tests := []struct {
		name     string
		packets  int // total packets including the one that seeds the pre-cache
		elapsed  time.Duration
		promoted bool
	}{
		{"19 packets at 11s", 19, 11 * time.Second, false},
		{"20 packets at 9s", 20, 9 * time.Second, false},
		{"20 packets at 11s", 20, 11 * time.Second, true},
		{"20 packets at exactly 10s", 20, 10 * time.Second, false},
		{"40 packets at 30s", 40, 30 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			require.True(t, f.engine.MatchOne(ipGoogle))
			f.clock.Advance(tt.elapsed)
			for i := 1; i < tt.packets; i++ {
				require.True(t, f.engine.MatchOne(ipGoogle))
			}
			assert.Equal(t, tt.promoted, f.hotpath.Contains(ipGoogle))
		})
	}
}

func TestMatchOne_PromotedFlowSkipsWhitelist(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.engine.MatchOne(ipGoogle))
	f.clock.Advance(11 * time.Second)
	for i := 0; i < 19; i++ {
		f.engine.MatchOne(ipGoogle)
	}
	require.True(t, f.hotpath.Contains(ipGoogle))

	at, ok := f.hotpath.PromotedAt(ipGoogle)
	require.True(t, ok)
	assert.Equal(t, clock.NowNanos(f.clock), at)

	// removing the whitelist entry does not demote a hotpathed flow
	require.NoError(t, f.whitelist.Delete(domain.HostKey(ipGoogle)))
	f.preCache.Remove(ipGoogle)
	assert.True(t, f.engine.MatchOne(ipGoogle))
}

func TestMatchOne_EvictionReturnsToUnseen(t *testing.T) {
	f := newFixture(t)
	pre, err := flowcache.NewPreCache(1)
	require.NoError(t, err)
	f.engine.preCache = pre

	require.True(t, f.engine.MatchOne(ipGoogle))
	require.True(t, f.engine.MatchOne(ipCN)) // evicts ipGoogle
	_, ok := pre.Get(ipGoogle)
	assert.False(t, ok)

	// the whitelist still matches, so the flow is re-seeded with a fresh count
	require.True(t, f.engine.MatchOne(ipGoogle))
	entry, ok := pre.Get(ipGoogle)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Count())
}

func TestNewEngine_Defaults(t *testing.T) {
	_, err := NewEngine(Options{})
	assert.Error(t, err)

	f := newFixture(t)
	assert.Equal(t, domain.HotpathMinPackets, f.engine.minPackets)
	assert.Equal(t, uint64(domain.HotpathMinAge), f.engine.minAge)
}

var (
	_ PrefixSet    = (*lpm.IPTable)(nil)
	_ HotpathCache = (*flowcache.HotpathCache)(nil)
	_ PreCache     = (*flowcache.PreCache)(nil)
)
