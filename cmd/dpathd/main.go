package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netaccel/direct-path/internal/dpath/common/clock"
	"github.com/netaccel/direct-path/internal/dpath/common/log"
	"github.com/netaccel/direct-path/internal/dpath/config"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/gateways/pcapreplay"
	"github.com/netaccel/direct-path/internal/dpath/repos/bloom"
	"github.com/netaccel/direct-path/internal/dpath/repos/flowcache"
	"github.com/netaccel/direct-path/internal/dpath/repos/lpm"
	"github.com/netaccel/direct-path/internal/dpath/repos/snapshot"
	"github.com/netaccel/direct-path/internal/dpath/services/classifier"
	"github.com/netaccel/direct-path/internal/dpath/services/domainmatch"
	"github.com/netaccel/direct-path/internal/dpath/services/ipmatch"
)

const (
	version = "0.1.0-dev"
	appName = "dpathd"

	// minBloomEntries keeps the prefilter usable when the snapshot is empty.
	minBloomEntries = 1024
)

// Application holds the tables and programs of the direct-path pipeline.
type Application struct {
	config *config.AppConfig
	store  *snapshot.Store
	tables *lpm.Tables
	bloom  *bloom.Filter

	hotpath     *flowcache.HotpathCache
	preCache    *flowcache.PreCache
	domainCache *flowcache.DomainCache

	marker *classifier.FlowMarker
	steer  *classifier.DNSSteer
	tc     *classifier.TCProgram
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

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.Log.Level,
		"snapshot":      cfg.Snapshot.DB,
		"mark":          fmt.Sprintf("%#x", cfg.Marker.Mark),
		"dns_port":      cfg.Steer.DNSPort,
		"resolver_port": cfg.Steer.ResolverPort,
		"label_policy":  cfg.Steer.LabelPolicy,
	}, "Starting direct-path daemon")

	app, err := buildApplication(cfg, clock.RealClock{})
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(map[string]any{"error": err.Error()}, "Daemon failed")
		app.Close()
		os.Exit(1)
	}

	log.Info(nil, "direct-path daemon stopped")
}

// buildApplication opens the snapshot, loads the tables and wires the programs.
func buildApplication(cfg *config.AppConfig, clk clock.Clock) (*Application, error) {
	store, err := snapshot.Open(cfg.Snapshot.DB, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", cfg.Snapshot.DB, err)
	}

	app := &Application{config: cfg, store: store}
	if err := app.buildTables(); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := app.buildPrograms(clk); err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func (app *Application) buildTables() error {
	cfg := app.config
	stats := app.store.Stats()
	log.Info(stats.Fields(), "Snapshot opened")

	var prefilter lpm.Prefilter
	if cfg.Tables.DomainBloomFP > 0 {
		n := stats.DomainWhitelist
		if n < minBloomEntries {
			n = minBloomEntries
		}
		app.bloom = bloom.New(n, cfg.Tables.DomainBloomFP)
		prefilter = app.bloom
	}
	app.tables = lpm.NewTables(cfg.Tables.DomainWhitelist, cfg.Tables.IPWhitelist, cfg.Tables.Blacklist, prefilter)

	loaded, err := app.store.LoadInto(app.tables)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	fields := map[string]any{}
	for table, n := range loaded {
		fields[table.String()] = n
	}
	if app.bloom != nil {
		fields["bloom_fill"] = app.bloom.FillRatio()
	}
	log.Info(fields, "Tables loaded")

	app.hotpath, err = flowcache.NewHotpathCache(cfg.Tables.Hotpath)
	if err != nil {
		return fmt.Errorf("failed to create hotpath cache: %w", err)
	}
	app.preCache, err = flowcache.NewPreCache(cfg.Tables.PreCache)
	if err != nil {
		return fmt.Errorf("failed to create pre-cache: %w", err)
	}
	app.domainCache, err = flowcache.NewDomainCache(cfg.Tables.DomainCache)
	if err != nil {
		return fmt.Errorf("failed to create domain cache: %w", err)
	}
	return nil
}

func (app *Application) buildPrograms(clk clock.Clock) error {
	cfg := app.config
	ips, err := ipmatch.NewEngine(ipmatch.Options{
		Blacklist:  app.tables.Blacklist,
		Whitelist:  app.tables.IPs,
		Hotpath:    app.hotpath,
		PreCache:   app.preCache,
		Clock:      clk,
		MinPackets: cfg.Marker.HotpathMinPackets,
		MinAge:     cfg.Marker.HotpathMinAge,
	})
	if err != nil {
		return err
	}
	domains, err := domainmatch.NewEngine(app.tables.Domains, app.domainCache)
	if err != nil {
		return err
	}

	app.marker, err = classifier.NewFlowMarker(ips, cfg.Marker.Mark)
	if err != nil {
		return err
	}
	app.steer, err = classifier.NewDNSSteer(classifier.SteerOptions{
		Domains:      domains,
		LabelPolicy:  cfg.LabelPolicy(),
		DNSPort:      cfg.Steer.DNSPort,
		ResolverPort: cfg.Steer.ResolverPort,
	})
	if err != nil {
		return err
	}
	app.tc, err = classifier.NewTCProgram(app.marker, app.steer)
	return err
}

// Program returns the named pipeline. "tc" is the combined egress program;
// anything else is the ingress chain of flow marking then DNS steering.
func (app *Application) Program(name string) classifier.Program {
	if name == "tc" {
		return app.tc
	}
	return classifier.Chain{app.marker, app.steer}
}

// Run replays the configured capture, if any, and then reports statistics
// periodically until ctx is cancelled. In replay mode it returns once the
// capture is done.
func (app *Application) Run(ctx context.Context) error {
	cfg := app.config
	if cfg.Daemon.ReplayIn != "" {
		replayer := pcapreplay.NewReplayer(cfg.Daemon.ReplayIn, cfg.Daemon.ReplayOut,
			log.With(log.GetLogger(), map[string]any{"program": cfg.Daemon.ReplayProgram}))
		_, err := replayer.Run(ctx, app.Program(cfg.Daemon.ReplayProgram))
		app.logStats()
		return err
	}

	log.Info(map[string]any{"stats_interval": cfg.Daemon.StatsInterval.String()}, "Pipeline ready")
	if cfg.Daemon.StatsInterval <= 0 {
		<-ctx.Done()
		app.logStats()
		return nil
	}

	ticker := time.NewTicker(cfg.Daemon.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			app.logStats()
			return nil
		case <-ticker.C:
			app.logStats()
		}
	}
}

func (app *Application) logStats() {
	for name, st := range map[string]flowcache.Stats{
		"hotpath":      app.hotpath.Stats(),
		"precache":     app.preCache.Stats(),
		"domain_cache": app.domainCache.Stats(),
	} {
		log.Info(map[string]any{
			"table":     name,
			"capacity":  st.Capacity,
			"size":      st.Size,
			"hits":      st.Hits,
			"misses":    st.Misses,
			"evictions": st.Evictions,
		}, "Cache statistics")
	}
	for name, st := range map[string]*classifier.Stats{
		"flow_marker": app.marker.Stats(),
		"dns_steer":   app.steer.Stats(),
		"tc":          app.tc.Stats(),
	} {
		fields := map[string]any{"program": name}
		for reason, n := range st.Snapshot() {
			fields[reason] = n
		}
		log.Info(fields, "Program statistics")
	}
	log.Debug(map[string]any{
		domain.TableDomainWhitelist.String(): app.tables.Len(domain.TableDomainWhitelist),
		domain.TableIPWhitelist.String():     app.tables.Len(domain.TableIPWhitelist),
		domain.TableBlacklist.String():       app.tables.Len(domain.TableBlacklist),
	}, "Table sizes")
}

// Close releases the snapshot.
func (app *Application) Close() error {
	return app.store.Close()
}
