// Package ruleset reads OpenClash style rule provider files and turns them
// into domain whitelist and IP table keys.
package ruleset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	logpkg "github.com/netaccel/direct-path/internal/dpath/common/log"
	"github.com/netaccel/direct-path/internal/dpath/common/utils"
	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// ParseLine extracts one rule from a rule file line or a YAML payload item.
//
// Recognised forms:
//   - DOMAIN,x / DOMAIN-SUFFIX,x / DOMAIN-KEYWORD,x
//   - IP-CIDR,a.b.c.d/n[,no-resolve]
//   - bare "a.b.c.d/n" or "a.b.c.d"
//   - bare names, with "+." / "*." / "." marking a suffix
//
// Comments, "payload:" headers and other rule types yield ok == false.
func ParseLine(line string) (kind domain.RuleKind, value string, ok bool) {
	s := strings.TrimSpace(strings.TrimPrefix(line, "\uFEFF"))
	if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "payload:") {
		return 0, "", false
	}
	if strings.HasPrefix(s, "- ") || s == "-" {
		s = strings.TrimSpace(s[1:])
	}
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	s = strings.Trim(s, `"'`)
	if s == "" {
		return 0, "", false
	}

	if typ, rest, found := strings.Cut(s, ","); found {
		switch strings.ToUpper(strings.TrimSpace(typ)) {
		case "DOMAIN":
			kind = domain.RuleDomain
		case "DOMAIN-SUFFIX":
			kind = domain.RuleDomainSuffix
		case "DOMAIN-KEYWORD":
			kind = domain.RuleDomainKeyword
		case "IP-CIDR":
			kind = domain.RuleIPCIDR
		default:
			return 0, "", false
		}
		value = cutTarget(rest)
		if kind == domain.RuleIPCIDR {
			value = cutCIDR(value)
		} else {
			value = utils.NormalizeRuleDomain(value)
		}
		return kind, value, value != ""
	}

	target := cutTarget(s)
	if looksLikeCIDR(target) {
		return domain.RuleIPCIDR, target, true
	}
	kind = domain.RuleDomain
	if strings.HasPrefix(target, "+.") || strings.HasPrefix(target, "*.") || strings.HasPrefix(target, ".") {
		kind = domain.RuleDomainSuffix
	}
	value = utils.NormalizeRuleDomain(target)
	return kind, value, value != ""
}

// cutTarget trims the field and stops at the first whitespace, quote or comma.
func cutTarget(s string) string {
	s = strings.TrimLeft(strings.TrimSpace(s), `"'`)
	if end := strings.IndexAny(s, " \t\"',"); end >= 0 {
		s = s[:end]
	}
	return s
}

// cutCIDR keeps the leading run of digits, dots and slashes.
func cutCIDR(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != '.' && c != '/' {
			return s[:i]
		}
	}
	return s
}

func looksLikeCIDR(s string) bool {
	return s != "" && cutCIDR(s) == s && strings.Count(s, ".") == 3
}

// ParseLines parses a newline-delimited rule list.
//
// Behavior:
// - Lines that are not rules are skipped and logged at debug level
// - Each rule is attributed to source and timestamped with now
// - Order is preserved; duplicates are left to the importer
func ParseLines(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.Rule, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := make([]domain.Rule, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_rules_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if rule, ok := parseItem(scanner.Text(), source, now, lineNum, logger); ok {
			out = append(out, rule)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_rules_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_rules_done")
	return out, nil
}

func parseItem(item, source string, now time.Time, lineNum int, logger logpkg.Logger) (domain.Rule, bool) {
	kind, value, ok := ParseLine(item)
	if !ok {
		logger.Debug(map[string]any{"line": lineNum}, "skip_not_rule")
		return domain.Rule{}, false
	}
	rule, err := domain.NewRule(kind, value, source, now)
	if err != nil {
		logger.Debug(map[string]any{"line": lineNum, "value": value, "error": err.Error()}, "skip_constructor_error")
		return domain.Rule{}, false
	}
	return rule, true
}

// LoadFile parses one rule file. YAML rule providers (.yml, .yaml) are read
// through koanf and must carry a "payload" list; anything else is parsed
// line by line.
func LoadFile(path string, logger logpkg.Logger, now time.Time) ([]domain.Rule, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yml" && ext != ".yaml" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseLines(f, path, logger, now)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load rule provider %s: %w", path, err)
	}
	if !k.Exists("payload") {
		return nil, fmt.Errorf("rule provider %s missing 'payload'", path)
	}

	items := k.Strings("payload")
	out := make([]domain.Rule, 0, len(items))
	logger.Debug(map[string]any{"source": path, "items": len(items)}, "parse_payload_start")
	for i, item := range items {
		if rule, ok := parseItem(item, path, now, i+1, logger); ok {
			out = append(out, rule)
		}
	}
	logger.Debug(map[string]any{"source": path, "count": len(out)}, "parse_payload_done")
	return out, nil
}
