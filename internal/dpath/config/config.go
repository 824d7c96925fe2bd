package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/netaccel/direct-path/internal/dpath/common/utils"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/gateways/wire"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log      LoggingConfig  `koanf:"log"`
	Marker   MarkerConfig   `koanf:"marker"`
	Steer    SteerConfig    `koanf:"steer"`
	Tables   TablesConfig   `koanf:"tables"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Daemon   DaemonConfig   `koanf:"daemon"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// MarkerConfig drives the flow marker and the hotpath promotion rule.
type MarkerConfig struct {
	// Mark is written to accelerated packets. Accepts hex ("0x88").
	Mark              uint32        `koanf:"mark" validate:"required"`
	HotpathMinPackets uint32        `koanf:"hotpath_min_packets" validate:"required,gte=1"`
	HotpathMinAge     time.Duration `koanf:"hotpath_min_age" validate:"gt=0"`
}

// SteerConfig drives the DNS steering programs.
type SteerConfig struct {
	DNSPort      uint16 `koanf:"dns_port" validate:"required,nefield=ResolverPort"`
	ResolverPort uint16 `koanf:"resolver_port" validate:"required"`
	// LabelPolicy is "skip" or "abort" for over-long label length bytes.
	LabelPolicy string `koanf:"label_policy" validate:"required,label_policy"`
}

// TablesConfig sizes the lookup tables. A zero cache size disables that cache.
type TablesConfig struct {
	Hotpath         int `koanf:"hotpath" validate:"gte=0"`
	PreCache        int `koanf:"precache" validate:"gte=0"`
	DomainCache     int `koanf:"domain_cache" validate:"gte=0"`
	Blacklist       int `koanf:"blacklist" validate:"required,gte=1"`
	IPWhitelist     int `koanf:"ip_whitelist" validate:"required,gte=1"`
	DomainWhitelist int `koanf:"domain_whitelist" validate:"required,gte=1"`

	// DomainBloomFP is the false-positive target of the domain whitelist
	// pre-filter. 0 disables the filter.
	DomainBloomFP float64 `koanf:"domain_bloom_fp" validate:"gte=0,lt=1"`
}

type SnapshotConfig struct {
	// DB is the bbolt snapshot file the importer writes and the daemon loads.
	DB string `koanf:"db" validate:"required"`
	// SeedTLDs are whitelisted on every domain import.
	SeedTLDs []string `koanf:"seed_tlds" validate:"dive,public_suffix"`
}

type DaemonConfig struct {
	// ReplayIn, when set, is a pcap file run through the pipeline at start.
	ReplayIn string `koanf:"replay_in"`
	// ReplayOut receives the rewritten frames of ReplayIn.
	ReplayOut string `koanf:"replay_out" validate:"excluded_without=ReplayIn"`
	// ReplayProgram selects the pipeline the capture runs through:
	// "ingress" (flow marker then DNS steering) or "tc" (marker plus reply restore).
	ReplayProgram string        `koanf:"replay_program" validate:"required,oneof=ingress tc"`
	StatsInterval time.Duration `koanf:"stats_interval" validate:"gte=0"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Marker: MarkerConfig{
		Mark:              domain.DirectMark,
		HotpathMinPackets: domain.HotpathMinPackets,
		HotpathMinAge:     domain.HotpathMinAge,
	},
	Steer: SteerConfig{
		DNSPort:      domain.DNSPort,
		ResolverPort: domain.ResolverPort,
		LabelPolicy:  "skip",
	},
	Tables: TablesConfig{
		Hotpath:         domain.HotpathCacheSize,
		PreCache:        domain.PreCacheSize,
		DomainCache:     domain.DomainCacheSize,
		Blacklist:       domain.BlacklistSize,
		IPWhitelist:     domain.IPWhitelistSize,
		DomainWhitelist: domain.DomainWhitelistSize,
		DomainBloomFP:   0.01,
	},
	Snapshot: SnapshotConfig{
		DB:       "/var/lib/direct-path/snapshot.db",
		SeedTLDs: []string{"cn"},
	},
	Daemon: DaemonConfig{
		ReplayProgram: "ingress",
		StatsInterval: time.Minute,
	},
}

// envKeys maps DP_* variable names (prefix stripped, lowercased) to config
// paths. Unlisted variables are ignored.
var envKeys = map[string]string{
	"env":                    "env",
	"log_level":              "log.level",
	"mark":                   "marker.mark",
	"hotpath_min_packets":    "marker.hotpath_min_packets",
	"hotpath_min_age":        "marker.hotpath_min_age",
	"dns_port":               "steer.dns_port",
	"resolver_port":          "steer.resolver_port",
	"label_policy":           "steer.label_policy",
	"table_hotpath":          "tables.hotpath",
	"table_precache":         "tables.precache",
	"table_domain_cache":     "tables.domain_cache",
	"table_blacklist":        "tables.blacklist",
	"table_ip_whitelist":     "tables.ip_whitelist",
	"table_domain_whitelist": "tables.domain_whitelist",
	"domain_bloom_fp":        "tables.domain_bloom_fp",
	"snapshot_db":            "snapshot.db",
	"seed_tlds":              "snapshot.seed_tlds",
	"replay_in":              "daemon.replay_in",
	"replay_out":             "daemon.replay_out",
	"replay_program":         "daemon.replay_program",
	"stats_interval":         "daemon.stats_interval",
}

// listKeys are split on spaces and commas.
var listKeys = map[string]bool{
	"snapshot.seed_tlds": true,
}

func validLabelPolicy(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	_, err := wire.ParseLabelPolicy(s)
	return err == nil
}

func validPublicSuffix(fl validator.FieldLevel) bool {
	return utils.IsPublicSuffix(fl.Field().String())
}

// envLoader loads environment variables with the prefix "DP_" and maps
// them onto config paths. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DP_",
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[strings.ToLower(strings.TrimPrefix(key, "DP_"))]
			if !ok {
				return "", nil
			}
			value = strings.TrimSpace(value)
			if listKeys[path] {
				return path, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return path, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "label_policy" and "public_suffix" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("label_policy", validLabelPolicy); err != nil {
		return err
	}
	return v.RegisterValidation("public_suffix", validPublicSuffix)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// LabelPolicy returns the parsed steering label policy.
func (c *AppConfig) LabelPolicy() wire.LabelPolicy {
	p, _ := wire.ParseLabelPolicy(c.Steer.LabelPolicy)
	return p
}
