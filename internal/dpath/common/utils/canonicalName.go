package utils

import "strings"

// CanonicalDNSName returns a DNS name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot, since the wire encoding terminator is implicit in table keys.
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// NormalizeRuleDomain strips the wildcard markers used by rule providers
// ("+.", "*.", ".") and returns the canonical name.
func NormalizeRuleDomain(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	for _, p := range []string{"+.", "*.", "."} {
		name = strings.TrimPrefix(name, p)
	}
	return CanonicalDNSName(name)
}
