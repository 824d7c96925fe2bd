// Package snapshot persists the administrative tables in a bbolt file so the
// daemon can rebuild them at start without re-reading rule providers.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/repos/ruleset"
)

var (
	bucketBlacklist   = []byte("blacklist")
	bucketIPWhitelist = []byte("ip_whitelist")
	bucketDomains     = []byte("domain_whitelist")
	bucketMeta        = []byte("meta")

	metaVersion = []byte("version")
	metaUpdated = []byte("updated")
)

// loadBatch bounds how many keys LoadInto hands to the target at once.
const loadBatch = 1024

// Store is a bbolt-backed table snapshot. Keys are the binary table keys;
// values are unused.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

var _ ruleset.Writer = (*Store)(nil)

// Stats reports per-table key counts and snapshot metadata.
type Stats struct {
	Version         uint64 // incremented on every write transaction
	UpdatedUnix     int64  // time of the last write (0 if never written)
	Blacklist       uint64
	IPWhitelist     uint64
	DomainWhitelist uint64
}

// Fields renders the stats for structured logging.
func (s Stats) Fields() map[string]any {
	return map[string]any{
		"version":          s.Version,
		"updated":          s.UpdatedUnix,
		"blacklist":        s.Blacklist,
		"ip_whitelist":     s.IPWhitelist,
		"domain_whitelist": s.DomainWhitelist,
	}
}

// Open opens (or creates) a snapshot at path and ensures buckets exist.
// clk may be nil.
func Open(path string, clk clock.Clock) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBlacklist, bucketIPWhitelist, bucketDomains, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{db: db, clock: clk}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.db.Path() }

func bucketFor(table domain.Table) ([]byte, error) {
	switch table {
	case domain.TableBlacklist:
		return bucketBlacklist, nil
	case domain.TableIPWhitelist:
		return bucketIPWhitelist, nil
	case domain.TableDomainWhitelist:
		return bucketDomains, nil
	default:
		return nil, fmt.Errorf("unknown table %s", table)
	}
}

// update runs fn against the table's bucket and bumps the snapshot metadata
// in the same transaction.
func (s *Store) update(table domain.Table, fn func(b *bbolt.Bucket) error) error {
	name, err := bucketFor(table)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := fn(tx.Bucket(name)); err != nil {
			return err
		}
		return s.touch(tx.Bucket(bucketMeta))
	})
}

func (s *Store) touch(meta *bbolt.Bucket) error {
	var version uint64
	if v := meta.Get(metaVersion); len(v) == 8 {
		version = binary.BigEndian.Uint64(v)
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version+1)
	binary.BigEndian.PutUint64(ubuf, uint64(s.clock.Now().Unix()))
	if err := meta.Put(metaVersion, vbuf); err != nil {
		return err
	}
	return meta.Put(metaUpdated, ubuf)
}

// PutDomainKeys stores keys in the domain whitelist bucket.
func (s *Store) PutDomainKeys(keys []domain.DomainKey) error {
	return s.update(domain.TableDomainWhitelist, func(b *bbolt.Bucket) error {
		for i := range keys {
			kb, _ := keys[i].MarshalBinary()
			if err := b.Put(kb, []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutIPKeys stores keys in the IP whitelist or blacklist bucket.
func (s *Store) PutIPKeys(table domain.Table, keys []domain.IPKey) error {
	if !table.IsIP() {
		return fmt.Errorf("%s is not an IP table", table)
	}
	return s.update(table, func(b *bbolt.Bucket) error {
		for _, k := range keys {
			kb, _ := k.MarshalBinary()
			if err := b.Put(kb, []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes every key of one table.
func (s *Store) Clear(table domain.Table) error {
	name, err := bucketFor(table)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
		return s.touch(tx.Bucket(bucketMeta))
	})
}

// Target receives keys read back from the snapshot. lpm.Tables implements it.
type Target interface {
	PutDomainKeys(keys []domain.DomainKey) error
	PutIPKeys(table domain.Table, keys []domain.IPKey) error
}

// LoadInto replays every stored key into t, table by table, and returns the
// number of keys loaded per table. A malformed key aborts the load.
func (s *Store) LoadInto(t Target) (map[domain.Table]int, error) {
	loaded := make(map[domain.Table]int, 3)
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, table := range []domain.Table{domain.TableBlacklist, domain.TableIPWhitelist} {
			n, err := loadIPs(tx, table, t)
			loaded[table] = n
			if err != nil {
				return err
			}
		}
		n, err := loadDomains(tx, t)
		loaded[domain.TableDomainWhitelist] = n
		return err
	})
	return loaded, err
}

func loadIPs(tx *bbolt.Tx, table domain.Table, t Target) (int, error) {
	name, _ := bucketFor(table)
	total := 0
	batch := make([]domain.IPKey, 0, loadBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := t.PutIPKeys(table, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	err := tx.Bucket(name).ForEach(func(k, _ []byte) error {
		var key domain.IPKey
		if err := key.UnmarshalBinary(k); err != nil {
			return fmt.Errorf("%s: %w", table, err)
		}
		batch = append(batch, key)
		if len(batch) == loadBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, flush()
}

func loadDomains(tx *bbolt.Tx, t Target) (int, error) {
	total := 0
	batch := make([]domain.DomainKey, 0, loadBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := t.PutDomainKeys(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	err := tx.Bucket(bucketDomains).ForEach(func(k, _ []byte) error {
		var key domain.DomainKey
		if err := key.UnmarshalBinary(k); err != nil {
			return fmt.Errorf("%s: %w", domain.TableDomainWhitelist, err)
		}
		batch = append(batch, key)
		if len(batch) == loadBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, flush()
}

// Stats reads counts and metadata in a read-only transaction.
func (s *Store) Stats() Stats {
	st := Stats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		st.Blacklist = uint64(tx.Bucket(bucketBlacklist).Stats().KeyN)
		st.IPWhitelist = uint64(tx.Bucket(bucketIPWhitelist).Stats().KeyN)
		st.DomainWhitelist = uint64(tx.Bucket(bucketDomains).Stats().KeyN)
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(metaVersion); len(v) == 8 {
			st.Version = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(metaUpdated); len(v) == 8 {
			st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return st
}
