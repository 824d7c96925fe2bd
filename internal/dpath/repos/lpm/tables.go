package lpm

import (
	"fmt"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// Tables groups the three administratively populated tries so that loaders
// can write into them by table name.
type Tables struct {
	Domains   *DomainTable
	IPs       *IPTable
	Blacklist *IPTable
}

// NewTables allocates all three tables. prefilter may be nil.
func NewTables(domainCap, ipCap, blacklistCap int, prefilter Prefilter) *Tables {
	return &Tables{
		Domains:   NewDomainTable(domainCap, prefilter),
		IPs:       NewIPTable(ipCap),
		Blacklist: NewIPTable(blacklistCap),
	}
}

// PutDomainKeys inserts keys into the domain whitelist.
func (t *Tables) PutDomainKeys(keys []domain.DomainKey) error {
	for i := range keys {
		if err := t.Domains.Insert(keys[i]); err != nil {
			return fmt.Errorf("insert %s: %w", keys[i], err)
		}
	}
	return nil
}

// PutIPKeys inserts keys into the IP whitelist or the blacklist.
func (t *Tables) PutIPKeys(table domain.Table, keys []domain.IPKey) error {
	tbl, err := t.ipTable(table)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := tbl.Insert(k); err != nil {
			return fmt.Errorf("insert %s into %s: %w", k, table, err)
		}
	}
	return nil
}

// Len returns the entry count of the named table.
func (t *Tables) Len(table domain.Table) int {
	if table == domain.TableDomainWhitelist {
		return t.Domains.Len()
	}
	tbl, err := t.ipTable(table)
	if err != nil {
		return 0
	}
	return tbl.Len()
}

func (t *Tables) ipTable(table domain.Table) (*IPTable, error) {
	switch table {
	case domain.TableIPWhitelist:
		return t.IPs, nil
	case domain.TableBlacklist:
		return t.Blacklist, nil
	default:
		return nil, fmt.Errorf("%s is not an IP table", table)
	}
}
