package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	"github.com/netaccel/direct-path/internal/dpath/common/log"
	"github.com/netaccel/direct-path/internal/dpath/config"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/repos/ruleset"
	"github.com/netaccel/direct-path/internal/dpath/repos/snapshot"
)

const (
	appName = "dpath-import"
	usage   = "usage: dpath-import <snapshot.db> <domain|ip|blacklist> <n> <file1> ... <fileN> [<snapshot.db> <type> <n> <files>...]"

	// defaultRuleFile is imported into the domain whitelist when no
	// arguments are given.
	defaultRuleFile = "/etc/openclash/rule_provider/ChinaMax.yml"
)

// group is one <db> <type> <n> <files...> run.
type group struct {
	db    string
	table domain.Table
	files []string
}

// parseGroups splits the argument list into import groups. With fewer than
// three arguments the default domain import into defaultDB is returned.
func parseGroups(args []string, defaultDB string) ([]group, error) {
	if len(args) < 3 {
		return []group{{db: defaultDB, table: domain.TableDomainWhitelist, files: []string{defaultRuleFile}}}, nil
	}

	var groups []group
	for i := 0; i < len(args); {
		if len(args)-i < 3 {
			return nil, fmt.Errorf("incomplete group at argument %d", i+1)
		}
		db := args[i]
		table, err := domain.ParseTable(args[i+1])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+2, err)
		}
		n, err := strconv.Atoi(args[i+2])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("argument %d: invalid rule file count %q", i+3, args[i+2])
		}
		i += 3
		if len(args)-i < n {
			return nil, fmt.Errorf("group %s %s: expected %d rule files, got %d", db, table, n, len(args)-i)
		}
		groups = append(groups, group{db: db, table: table, files: args[i : i+n]})
		i += n
	}
	return groups, nil
}

// runImport executes every group, opening each snapshot once.
func runImport(ctx context.Context, cfg *config.AppConfig, groups []group, logger log.Logger) error {
	stores := make(map[string]*snapshot.Store)
	defer func() {
		for _, st := range stores {
			_ = st.Close()
		}
	}()

	seeds := cfg.Snapshot.SeedTLDs
	if seeds == nil {
		seeds = []string{}
	}

	for _, g := range groups {
		st, ok := stores[g.db]
		if !ok {
			var err error
			st, err = snapshot.Open(g.db, clock.RealClock{})
			if err != nil {
				return fmt.Errorf("failed to open snapshot %s: %w", g.db, err)
			}
			stores[g.db] = st
		}

		glog := log.With(logger, map[string]any{"snapshot": g.db})
		im, err := ruleset.NewImporter(st, ruleset.Options{
			SeedTLDs: seeds,
			Clock:    clock.RealClock{},
			Logger:   glog,
		})
		if err != nil {
			return err
		}

		rep, err := im.ImportFiles(ctx, g.table, g.files)
		if err != nil {
			return fmt.Errorf("import into %s (%s): %w", g.db, g.table, err)
		}
		glog.Info(rep.Fields(), "Import completed")
	}

	for path, st := range stores {
		log.With(logger, map[string]any{"snapshot": path}).Info(st.Stats().Fields(), "Snapshot state")
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	err = log.Configure(cfg.Env, cfg.Log.Level, appName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	groups, err := parseGroups(os.Args[1:], cfg.Snapshot.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Argument error: %v\n%s\n", err, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runImport(ctx, cfg, groups, log.GetLogger()); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn(nil, "Import interrupted")
		} else {
			log.Error(map[string]any{"error": err.Error()}, "Import failed")
		}
		stop()
		os.Exit(1)
	}
}
