// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/kamiya/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv provides the keys without defaults.
func setRequiredEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KAMIYA_DATA", dir)
	t.Setenv("KAMIYA_CMS_SERVICE_DOMAIN", "kamiya")
	t.Setenv("KAMIYA_CMS_API_KEY", "secret")
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := setRequiredEnv(t)

	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "https://kamiya.microcms.io/api/v1", cfg.CMS.BaseURL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, filepath.Join(dataDir, "cache"), cfg.Cache.BadgerPath)
	assert.Equal(t, filepath.Join(dataDir, "images"), cfg.Site.AssetsDir)
	assert.Equal(t, TransitionConfig{
		CoverIn:  500 * time.Millisecond,
		Settle:   200 * time.Millisecond,
		CoverOut: 500 * time.Millisecond,
		Safety:   5 * time.Second,
	}, cfg.Transition)
	assert.InDelta(t, 0.1, cfg.Reveal.Threshold, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Reveal.EntranceSafety)
	assert.Equal(t, DefaultSiteName, cfg.Site.Name)
	assert.Equal(t, 5, cfg.Site.NewsLatestLimit)
	assert.Equal(t, 100, cfg.Site.NewsListLimit)
	assert.True(t, cfg.Site.Live)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	setRequiredEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", `
logLevel: debug
transition:
  coverIn: 300ms
  safety: 3s
cache:
  backend: Redis
  redisAddr: localhost:6379
site:
  baseURL: https://kamiya.example
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 300*time.Millisecond, cfg.Transition.CoverIn)
	assert.Equal(t, 200*time.Millisecond, cfg.Transition.Settle, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Transition.Safety)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "https://kamiya.example", cfg.Site.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	path := writeFile(t, t.TempDir(), "config.yaml", `
logLevel: debug
server:
  listenAddr: ":9000"
reveal:
  threshold: 0.5
cms:
  baseURL: https://file.example/api/v1/
`)
	t.Setenv("KAMIYA_LOG_LEVEL", "warn")
	t.Setenv("KAMIYA_LISTEN", ":9100")
	t.Setenv("KAMIYA_REVEAL_THRESHOLD", "0.25")
	t.Setenv("KAMIYA_RATELIMIT_ENABLED", "no")

	loader := NewLoader(path, "")
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.Server.ListenAddr)
	assert.InDelta(t, 0.25, cfg.Reveal.Threshold, 1e-9)
	assert.False(t, cfg.RateLimit.Enabled)
	// An explicit base URL wins over the service domain.
	assert.Equal(t, "https://file.example/api/v1", cfg.CMS.BaseURL)

	assert.Contains(t, loader.ConsumedEnvKeys, "KAMIYA_LOG_LEVEL")
	assert.Contains(t, loader.ConsumedEnvKeys, "KAMIYA_TRANSITION_SAFETY")
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAMIYA_TRANSITION_COVER_IN", "soon")
	t.Setenv("KAMIYA_NEWS_LATEST_LIMIT", "five")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Transition.CoverIn)
	assert.Equal(t, 5, cfg.Site.NewsLatestLimit)
}

func TestLoad_StrictParsing(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()

	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, dir, "unknown.yaml", "logLevel: info\ntransitions:\n  coverIn: 1s\n")
		_, err := NewLoader(path, "").Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownConfigField)
	})

	t.Run("unknown nested key", func(t *testing.T) {
		path := writeFile(t, dir, "nested.yaml", "cms:\n  apikey: x\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrUnknownConfigField)
	})

	t.Run("multiple documents", func(t *testing.T) {
		path := writeFile(t, dir, "multi.yaml", "logLevel: info\n---\nlogLevel: debug\n")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrMultipleDocuments)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, dir, "dur.yaml", "transition:\n  coverIn: fast\n")
		_, err := NewLoader(path, "").Load()
		assert.Error(t, err)
	})

	t.Run("unsupported format", func(t *testing.T) {
		path := writeFile(t, dir, "config.json", "{}")
		_, err := NewLoader(path, "").Load()
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.yaml", "")
		_, err := NewLoader(path, "").Load()
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(dir, "missing.yaml"), "").Load()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) AppConfig {
		cfg := Defaults()
		cfg.DataDir = t.TempDir()
		cfg.CMS.ServiceDomain = "kamiya"
		cfg.CMS.APIKey = "secret"
		resolveDerived(&cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{"log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"listen addr", func(c *AppConfig) { c.Server.ListenAddr = "8080" }, "server.listenAddr"},
		{"metrics collides", func(c *AppConfig) { c.Metrics.ListenAddr = c.Server.ListenAddr }, "metrics.listenAddr"},
		{"missing cms", func(c *AppConfig) { c.CMS.BaseURL = "" }, "cms.serviceDomain"},
		{"missing api key", func(c *AppConfig) { c.CMS.APIKey = "" }, "cms.apiKey"},
		{"cms scheme", func(c *AppConfig) { c.CMS.BaseURL = "ftp://cms" }, "cms.baseURL"},
		{"cache backend", func(c *AppConfig) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *AppConfig) { c.Cache.Backend = "redis" }, "cache.redisAddr"},
		{"safety too short", func(c *AppConfig) { c.Transition.Safety = time.Second }, "transition.coverIn+settle+coverOut"},
		{"negative settle", func(c *AppConfig) { c.Transition.Settle = -time.Millisecond }, "transition.settle"},
		{"threshold zero", func(c *AppConfig) { c.Reveal.Threshold = 0 }, "reveal.threshold"},
		{"threshold above one", func(c *AppConfig) { c.Reveal.Threshold = 1.5 }, "reveal.threshold"},
		{"news limit", func(c *AppConfig) { c.Site.NewsListLimit = 101 }, "site.newsListLimit"},
		{"site url", func(c *AppConfig) { c.Site.BaseURL = "kamiya.example" }, "site.baseURL"},
		{"rate limit", func(c *AppConfig) { c.RateLimit.RPM = 0 }, "rateLimit.rpm"},
		{"otel exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
	}

	require.NoError(t, Validate(base(t)))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			var ve validate.ValidationError
			require.ErrorAs(t, err, &ve)
			fields := make([]string, 0, len(ve.Errors()))
			for _, e := range ve.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	cfg.LogLevel = "loud"
	cfg.Server.ListenAddr = "nope"

	var ve validate.ValidationError
	require.ErrorAs(t, Validate(cfg), &ve)
	// logLevel, listenAddr, cms base, cms key
	assert.GreaterOrEqual(t, len(ve.Errors()), 4)
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "YES": true, "1": true, "false": false, "no": false, "0": false} {
		t.Setenv("KAMIYA_TEST_BOOL", in)
		assert.Equal(t, want, ParseBool("KAMIYA_TEST_BOOL", !want), in)
	}
	t.Setenv("KAMIYA_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("KAMIYA_TEST_BOOL", true))
	t.Setenv("KAMIYA_TEST_BOOL", "")
	assert.False(t, ParseBool("KAMIYA_TEST_BOOL", false))
}

func TestParseString_Sensitive(t *testing.T) {
	t.Setenv("KAMIYA_CMS_API_KEY", "secret")
	assert.True(t, isSensitiveKey("KAMIYA_CMS_API_KEY"))
	assert.True(t, isSensitiveKey("KAMIYA_REDIS_PASSWORD"))
	assert.False(t, isSensitiveKey("KAMIYA_LISTEN"))
	assert.Equal(t, "secret", ParseString("KAMIYA_CMS_API_KEY", ""))
}
