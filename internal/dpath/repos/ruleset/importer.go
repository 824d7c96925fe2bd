package ruleset

import (
	"context"
	"errors"
	"fmt"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	logpkg "github.com/netaccel/direct-path/internal/dpath/common/log"
	"github.com/netaccel/direct-path/internal/dpath/common/utils"
	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// Writer receives keys in batches. The snapshot store and the in-memory
// lpm tables both implement it.
type Writer interface {
	PutDomainKeys(keys []domain.DomainKey) error
	PutIPKeys(table domain.Table, keys []domain.IPKey) error
}

// DefaultSeedTLDs are whitelisted on every domain import.
var DefaultSeedTLDs = []string{"cn"}

const defaultBatchSize = 1024

// Options configures an Importer. Zero values select the defaults.
type Options struct {
	// SeedTLDs are public suffixes inserted before any file is read.
	// nil selects DefaultSeedTLDs; an empty non-nil slice disables seeding.
	SeedTLDs  []string
	BatchSize int
	Clock     clock.Clock
	Logger    logpkg.Logger
}

// Importer feeds parsed rules into a Writer.
type Importer struct {
	w         Writer
	seeds     map[string]struct{}
	seedOrder []string
	batchSize int
	clock     clock.Clock
	logger    logpkg.Logger
}

// NewImporter validates the seed list and returns an Importer.
func NewImporter(w Writer, opts Options) (*Importer, error) {
	if w == nil {
		return nil, errors.New("ruleset: writer is required")
	}
	seeds := opts.SeedTLDs
	if seeds == nil {
		seeds = DefaultSeedTLDs
	}
	im := &Importer{
		w:         w,
		seeds:     make(map[string]struct{}, len(seeds)),
		batchSize: opts.BatchSize,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	for _, s := range seeds {
		name := utils.CanonicalDNSName(s)
		if !utils.IsPublicSuffix(name) {
			return nil, fmt.Errorf("seed %q is not a public suffix", s)
		}
		if _, dup := im.seeds[name]; dup {
			continue
		}
		im.seeds[name] = struct{}{}
		im.seedOrder = append(im.seedOrder, name)
	}
	if im.batchSize <= 0 {
		im.batchSize = defaultBatchSize
	}
	if im.clock == nil {
		im.clock = clock.RealClock{}
	}
	if im.logger == nil {
		im.logger = logpkg.NewNoopLogger()
	}
	return im, nil
}

// ImportFiles parses every path and writes the rules that fit table.
// Seeds are written once, before the first file, for the domain whitelist.
// ctx is checked between files and batches.
func (im *Importer) ImportFiles(ctx context.Context, table domain.Table, paths []string) (Report, error) {
	rep := Report{Table: table}
	b := im.newBatch(table, &rep)

	if table == domain.TableDomainWhitelist {
		if err := im.seed(b); err != nil {
			return rep, err
		}
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rules, err := LoadFile(path, im.logger, im.clock.Now())
		if err != nil {
			return rep, fmt.Errorf("error parsing rule file %s: %w", path, err)
		}
		rep.Files++
		if err := im.addRules(ctx, b, rules); err != nil {
			return rep, err
		}
		im.logger.Info(map[string]any{"file": path, "table": table.String(), "rules": len(rules)}, "rule file imported")
	}

	if err := b.flush(); err != nil {
		return rep, err
	}
	rep.Apexes = len(b.apexes)
	return rep, nil
}

// ImportRules writes already parsed rules, without seeding.
func (im *Importer) ImportRules(ctx context.Context, table domain.Table, rules []domain.Rule) (Report, error) {
	rep := Report{Table: table}
	b := im.newBatch(table, &rep)
	if err := im.addRules(ctx, b, rules); err != nil {
		return rep, err
	}
	if err := b.flush(); err != nil {
		return rep, err
	}
	rep.Apexes = len(b.apexes)
	return rep, nil
}

func (im *Importer) seed(b *batch) error {
	for _, name := range im.seedOrder {
		key, err := domain.EncodeDomainKey(name)
		if err != nil {
			return fmt.Errorf("seed %q: %w", name, err)
		}
		b.domains = append(b.domains, key)
		b.rep.Seeded++
		b.seen[name] = struct{}{}
	}
	return b.flushIfFull()
}

func (im *Importer) addRules(ctx context.Context, b *batch, rules []domain.Rule) error {
	for i, r := range rules {
		if i%im.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		b.rep.Rules++
		if err := b.add(r); err != nil {
			return err
		}
	}
	return nil
}

// batch accumulates keys for one table and tracks per-import counters.
type batch struct {
	im      *Importer
	table   domain.Table
	rep     *Report
	seen    map[string]struct{}
	apexes  map[string]struct{}
	domains []domain.DomainKey
	ips     []domain.IPKey
}

func (im *Importer) newBatch(table domain.Table, rep *Report) *batch {
	return &batch{
		im:     im,
		table:  table,
		rep:    rep,
		seen:   make(map[string]struct{}),
		apexes: make(map[string]struct{}),
	}
}

func (b *batch) add(r domain.Rule) error {
	logger := b.im.logger
	if _, dup := b.seen[r.Value]; dup {
		b.rep.Duplicates++
		return nil
	}

	if b.table == domain.TableDomainWhitelist {
		if utils.IsPublicSuffix(r.Value) {
			if _, seeded := b.im.seeds[r.Value]; !seeded {
				logger.Debug(map[string]any{"name": r.Value, "source": r.Source}, "skip_public_suffix")
				b.rep.PublicSuffix++
				return nil
			}
		}
		key, err := DomainKeyFor(r)
		if err != nil {
			return b.reject(r, err)
		}
		b.domains = append(b.domains, key)
		b.apexes[utils.GetApexDomain(r.Value)] = struct{}{}
	} else {
		key, err := IPKeyFor(r)
		if err != nil {
			return b.reject(r, err)
		}
		b.ips = append(b.ips, key)
	}

	b.seen[r.Value] = struct{}{}
	b.rep.Imported++
	return b.flushIfFull()
}

// reject counts a rule that cannot be keyed. Only writer errors abort.
func (b *batch) reject(r domain.Rule, err error) error {
	fields := map[string]any{"value": r.Value, "kind": r.Kind.String(), "source": r.Source, "error": err.Error()}
	if errors.Is(err, ErrUnsupportedKind) || errors.Is(err, ErrNotIPv4) {
		b.im.logger.Debug(fields, "skip_other_kind")
		b.rep.Skipped++
		return nil
	}
	b.im.logger.Debug(fields, "skip_invalid")
	b.rep.Invalid++
	return nil
}

func (b *batch) flushIfFull() error {
	if len(b.domains)+len(b.ips) < b.im.batchSize {
		return nil
	}
	return b.flush()
}

func (b *batch) flush() error {
	if len(b.domains) > 0 {
		if err := b.im.w.PutDomainKeys(b.domains); err != nil {
			return fmt.Errorf("write %s batch: %w", b.table, err)
		}
		b.domains = b.domains[:0]
	}
	if len(b.ips) > 0 {
		if err := b.im.w.PutIPKeys(b.table, b.ips); err != nil {
			return fmt.Errorf("write %s batch: %w", b.table, err)
		}
		b.ips = b.ips[:0]
	}
	return nil
}
