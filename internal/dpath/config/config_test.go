package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netaccel/direct-path/internal/dpath/gateways/wire"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, uint32(0x88), cfg.Marker.Mark)
	assert.Equal(t, uint32(20), cfg.Marker.HotpathMinPackets)
	assert.Equal(t, 10*time.Second, cfg.Marker.HotpathMinAge)
	assert.Equal(t, uint16(53), cfg.Steer.DNSPort)
	assert.Equal(t, uint16(15301), cfg.Steer.ResolverPort)
	assert.Equal(t, wire.LabelSkip, cfg.LabelPolicy())
	assert.Equal(t, 65536, cfg.Tables.Hotpath)
	assert.Equal(t, 10485760, cfg.Tables.DomainWhitelist)
	assert.InDelta(t, 0.01, cfg.Tables.DomainBloomFP, 1e-9)
	assert.Equal(t, []string{"cn"}, cfg.Snapshot.SeedTLDs)
	assert.Equal(t, time.Minute, cfg.Daemon.StatsInterval)
	assert.Empty(t, cfg.Daemon.ReplayIn)
	assert.Equal(t, "ingress", cfg.Daemon.ReplayProgram)
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("DP_ENV", "dev")
	t.Setenv("DP_LOG_LEVEL", "debug")
	t.Setenv("DP_MARK", "0x99")
	t.Setenv("DP_HOTPATH_MIN_PACKETS", "5")
	t.Setenv("DP_HOTPATH_MIN_AGE", "2s")
	t.Setenv("DP_DNS_PORT", "5353")
	t.Setenv("DP_RESOLVER_PORT", "15353")
	t.Setenv("DP_LABEL_POLICY", "abort")
	t.Setenv("DP_TABLE_HOTPATH", "0")
	t.Setenv("DP_TABLE_BLACKLIST", "64")
	t.Setenv("DP_DOMAIN_BLOOM_FP", "0.001")
	t.Setenv("DP_SNAPSHOT_DB", "/tmp/dp.db")
	t.Setenv("DP_SEED_TLDS", "cn, hk")
	t.Setenv("DP_REPLAY_IN", "/tmp/in.pcap")
	t.Setenv("DP_REPLAY_OUT", "/tmp/out.pcap")
	t.Setenv("DP_REPLAY_PROGRAM", "tc")
	t.Setenv("DP_STATS_INTERVAL", "0s")
	t.Setenv("DP_UNKNOWN_SETTING", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint32(0x99), cfg.Marker.Mark)
	assert.Equal(t, uint32(5), cfg.Marker.HotpathMinPackets)
	assert.Equal(t, 2*time.Second, cfg.Marker.HotpathMinAge)
	assert.Equal(t, uint16(5353), cfg.Steer.DNSPort)
	assert.Equal(t, uint16(15353), cfg.Steer.ResolverPort)
	assert.Equal(t, wire.LabelAbort, cfg.LabelPolicy())
	assert.Equal(t, 0, cfg.Tables.Hotpath)
	assert.Equal(t, 64, cfg.Tables.Blacklist)
	assert.InDelta(t, 0.001, cfg.Tables.DomainBloomFP, 1e-9)
	assert.Equal(t, "/tmp/dp.db", cfg.Snapshot.DB)
	assert.Equal(t, []string{"cn", "hk"}, cfg.Snapshot.SeedTLDs)
	assert.Equal(t, "/tmp/in.pcap", cfg.Daemon.ReplayIn)
	assert.Equal(t, "/tmp/out.pcap", cfg.Daemon.ReplayOut)
	assert.Equal(t, "tc", cfg.Daemon.ReplayProgram)
	assert.Equal(t, time.Duration(0), cfg.Daemon.StatsInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"env", map[string]string{"DP_ENV": "staging"}},
		{"log level", map[string]string{"DP_LOG_LEVEL": "trace"}},
		{"label policy", map[string]string{"DP_LABEL_POLICY": "truncate"}},
		{"equal ports", map[string]string{"DP_DNS_PORT": "53", "DP_RESOLVER_PORT": "53"}},
		{"port overflow", map[string]string{"DP_DNS_PORT": "70000"}},
		{"port NaN", map[string]string{"DP_RESOLVER_PORT": "not_a_number"}},
		{"zero mark", map[string]string{"DP_MARK": "0"}},
		{"zero min packets", map[string]string{"DP_HOTPATH_MIN_PACKETS": "0"}},
		{"zero min age", map[string]string{"DP_HOTPATH_MIN_AGE": "0s"}},
		{"bloom fp", map[string]string{"DP_DOMAIN_BLOOM_FP": "1.5"}},
		{"negative cache", map[string]string{"DP_TABLE_PRECACHE": "-1"}},
		{"zero whitelist", map[string]string{"DP_TABLE_IP_WHITELIST": "0"}},
		{"empty snapshot", map[string]string{"DP_SNAPSHOT_DB": ""}},
		{"seed not public suffix", map[string]string{"DP_SEED_TLDS": "baidu.com"}},
		{"replay out without in", map[string]string{"DP_REPLAY_OUT": "/tmp/out.pcap"}},
		{"replay program", map[string]string{"DP_REPLAY_PROGRAM": "xdp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading defaults, got nil")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatal("expected error when registering validation, got nil")
	}
}

func TestCustomValidators(t *testing.T) {
	validate := validator.New()
	require.NoError(t, registerValidation(validate))

	type S struct {
		Policy string `validate:"label_policy"`
		Seed   string `validate:"public_suffix"`
	}
	cases := []struct {
		s  S
		ok bool
	}{
		{S{"skip", "cn"}, true},
		{S{"ABORT", "com.cn"}, true},
		{S{"", "cn"}, false},
		{S{"skip", "qq.com"}, false},
		{S{"skip", ""}, false},
	}
	for _, tc := range cases {
		err := validate.Struct(tc.s)
		if tc.ok {
			assert.NoError(t, err, "%+v", tc.s)
		} else {
			assert.Error(t, err, "%+v", tc.s)
		}
	}
}

func TestDefaultLoader_InvalidDefault_ValidationFails(t *testing.T) {
	orig := DEFAULT_APP_CONFIG
	defer func() { DEFAULT_APP_CONFIG = orig }()

	DEFAULT_APP_CONFIG.Steer.LabelPolicy = "bogus"
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
