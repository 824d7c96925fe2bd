package ruleset

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/netaccel/direct-path/internal/dpath/common/netaddr"
	"github.com/netaccel/direct-path/internal/dpath/domain"
)

var (
	// ErrUnsupportedKind is returned when a rule cannot be keyed for the
	// requested table, e.g. a DOMAIN rule offered to the IP whitelist.
	ErrUnsupportedKind = errors.New("ruleset: rule kind not supported by table")
	// ErrNotIPv4 is returned for IPv6 CIDRs; the tables are IPv4 only.
	ErrNotIPv4 = errors.New("ruleset: not an IPv4 prefix")
)

// DomainKeyFor encodes a domain rule as a reversed wire-format key.
// Keyword rules are keyed like suffix rules.
func DomainKeyFor(r domain.Rule) (domain.DomainKey, error) {
	if !r.Kind.IsDomain() {
		return domain.DomainKey{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, r.Kind)
	}
	return domain.EncodeDomainKey(r.Value)
}

// IPKeyFor parses a CIDR rule (or a bare address, taken as /32) and masks
// its host bits.
func IPKeyFor(r domain.Rule) (domain.IPKey, error) {
	if r.Kind != domain.RuleIPCIDR {
		return domain.IPKey{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, r.Kind)
	}

	var prefix netip.Prefix
	var err error
	if strings.Contains(r.Value, "/") {
		prefix, err = netip.ParsePrefix(r.Value)
	} else {
		var addr netip.Addr
		addr, err = netip.ParseAddr(r.Value)
		if err == nil {
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
	}
	if err != nil {
		return domain.IPKey{}, fmt.Errorf("invalid CIDR %q: %w", r.Value, err)
	}

	ip, ok := netaddr.FromAddr(prefix.Addr())
	if !ok || prefix.Addr().Is4In6() {
		return domain.IPKey{}, fmt.Errorf("%w: %s", ErrNotIPv4, r.Value)
	}
	return domain.NewIPKey(ip, uint32(prefix.Bits()))
}
