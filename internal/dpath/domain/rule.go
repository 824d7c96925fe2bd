package domain

import (
	"fmt"
	"strings"
	"time"
)

// Table names one of the administratively populated tries.
type Table uint8

const (
	TableDomainWhitelist Table = iota
	TableIPWhitelist
	TableBlacklist
)

// String returns the importer's name for the table.
func (t Table) String() string {
	switch t {
	case TableDomainWhitelist:
		return "domain"
	case TableIPWhitelist:
		return "ip"
	case TableBlacklist:
		return "blacklist"
	default:
		return fmt.Sprintf("Table(%d)", t)
	}
}

// IsIP reports whether the table is keyed by IPKey.
func (t Table) IsIP() bool {
	return t == TableIPWhitelist || t == TableBlacklist
}

// ParseTable converts an importer type argument into a Table.
// Accepts: "domain", "ip", "blacklist" (case-insensitive).
func ParseTable(s string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domain":
		return TableDomainWhitelist, nil
	case "ip":
		return TableIPWhitelist, nil
	case "blacklist":
		return TableBlacklist, nil
	default:
		return 0, fmt.Errorf("unsupported table: %q", s)
	}
}

// RuleKind is the rule provider entry type.
type RuleKind uint8

const (
	// RuleDomain is an exact DOMAIN entry. The trie has no exact mode, so it
	// also covers subdomains once imported.
	RuleDomain RuleKind = iota
	// RuleDomainSuffix is a DOMAIN-SUFFIX or "+." entry.
	RuleDomainSuffix
	// RuleDomainKeyword is a DOMAIN-KEYWORD entry, imported as a suffix.
	RuleDomainKeyword
	// RuleIPCIDR is an IP-CIDR entry or a bare CIDR line.
	RuleIPCIDR
)

// String returns a stable string representation of the rule kind.
func (k RuleKind) String() string {
	switch k {
	case RuleDomain:
		return "domain"
	case RuleDomainSuffix:
		return "domain-suffix"
	case RuleDomainKeyword:
		return "domain-keyword"
	case RuleIPCIDR:
		return "ip-cidr"
	default:
		return fmt.Sprintf("RuleKind(%d)", k)
	}
}

// IsDomain reports whether the rule targets the domain whitelist.
func (k RuleKind) IsDomain() bool {
	return k == RuleDomain || k == RuleDomainSuffix || k == RuleDomainKeyword
}

// Rule is one parsed rule file entry.
//
// Notes:
// - Value is a canonical domain (no trailing dot) or a CIDR string.
// - Source identifies the rule file.
type Rule struct {
	Kind    RuleKind
	Value   string
	Source  string
	AddedAt time.Time
}

// NewRule constructs a Rule and validates its fields.
func NewRule(kind RuleKind, value, source string, addedAt time.Time) (Rule, error) {
	r := Rule{
		Kind:    kind,
		Value:   strings.TrimSpace(value),
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// Validate checks the Rule for required fields and supported values.
func (r Rule) Validate() error {
	if r.Value == "" {
		return fmt.Errorf("rule value must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	switch r.Kind {
	case RuleDomain, RuleDomainSuffix, RuleDomainKeyword, RuleIPCIDR:
	default:
		return fmt.Errorf("unsupported RuleKind: %d", r.Kind)
	}
	return nil
}
