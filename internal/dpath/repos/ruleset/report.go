package ruleset

import "github.com/netaccel/direct-path/internal/dpath/domain"

// Report counts what an import did.
type Report struct {
	Table        domain.Table
	Files        int
	Rules        int // rules parsed
	Imported     int // keys written, seeds excluded
	Seeded       int
	Duplicates   int
	PublicSuffix int // bare public suffixes refused
	Skipped      int // rules of a kind the table does not hold
	Invalid      int // rules that failed to encode
	Apexes       int // distinct registrable domains among imported names
}

// Add accumulates other into r. Table is left unchanged.
func (r *Report) Add(other Report) {
	r.Files += other.Files
	r.Rules += other.Rules
	r.Imported += other.Imported
	r.Seeded += other.Seeded
	r.Duplicates += other.Duplicates
	r.PublicSuffix += other.PublicSuffix
	r.Skipped += other.Skipped
	r.Invalid += other.Invalid
	r.Apexes += other.Apexes
}

// Fields renders the report for structured logging.
func (r Report) Fields() map[string]any {
	return map[string]any{
		"table":         r.Table.String(),
		"files":         r.Files,
		"rules":         r.Rules,
		"imported":      r.Imported,
		"seeded":        r.Seeded,
		"duplicates":    r.Duplicates,
		"public_suffix": r.PublicSuffix,
		"skipped":       r.Skipped,
		"invalid":       r.Invalid,
		"apexes":        r.Apexes,
	}
}
