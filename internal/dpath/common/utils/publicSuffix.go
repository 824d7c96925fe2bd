package utils

import "golang.org/x/net/publicsuffix"

// IsPublicSuffix reports whether name is itself an ICANN public suffix
// ("cn", "com.cn", "co.uk"). Whitelisting such a name covers every domain
// registered under it.
func IsPublicSuffix(name string) bool {
	name = CanonicalDNSName(name)
	if name == "" {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(name)
	return icann && suffix == name
}

// GetApexDomain returns the registrable domain (eTLD+1) for name, or the
// canonical name itself when it has none.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}
