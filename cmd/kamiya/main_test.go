// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/kamiya/internal/cache"
	"github.com/ManuGH/kamiya/internal/cms/cmstest"
	"github.com/ManuGH/kamiya/internal/config"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "test-key"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setRequiredEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KAMIYA_DATA", dir)
	t.Setenv("KAMIYA_CONFIG", "")
	t.Setenv("KAMIYA_CMS_SERVICE_DOMAIN", "kamiya")
	t.Setenv("KAMIYA_CMS_API_KEY", "secret-key")
	return dir
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kamiya "+version.Version)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestConfigInitThenValidate(t *testing.T) {
	dir := setRequiredEnv(t)
	path := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init", path)
	assert.ErrorIs(t, err, config.ErrConfigExists)
	_, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	// KAMIYA_DATA/config.yaml is picked up without flags.
	out, err = execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestConfigInit_DefaultsToDataDir(t *testing.T) {
	dir := setRequiredEnv(t)
	_, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
}

func TestConfigValidate_ReportsErrors(t *testing.T) {
	dir := setRequiredEnv(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listenAddr: \":8080\"\n  bogus: 1\n"), 0o600))

	_, err := execute(t, "config", "validate", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.ErrorIs(t, err, config.ErrUnknownConfigField)

	t.Setenv("KAMIYA_CMS_API_KEY", "")
	_, err = execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment configuration")
}

func TestConfigDump_RedactsSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAMIYA_REDIS_PASSWORD", "hunter2")

	out, err := execute(t, "config", "dump")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-key")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, redacted)

	out, err = execute(t, "config", "dump", "--format", "json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.NotContains(t, out, "secret-key")

	_, err = execute(t, "config", "dump", "--format", "toml")
	assert.Error(t, err)
}

func TestHealthcheckCmd(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/readyz" && ready.Load():
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "healthcheck", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "successful (ready)")

	ready.Store(false)
	_, err = execute(t, "healthcheck", "--url", srv.URL+"/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = execute(t, "healthcheck", "--url", srv.URL, "--mode", "live")
	require.NoError(t, err)

	_, err = execute(t, "healthcheck", "--url", srv.URL, "--mode", "startup")
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	dir := setRequiredEnv(t)

	opts := &rootOptions{}
	assert.Empty(t, opts.resolveConfigPath(), "no file and no overrides")

	auto := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(auto, []byte("{}\n"), 0o600))
	assert.Equal(t, auto, opts.resolveConfigPath())

	t.Setenv("KAMIYA_CONFIG", "/etc/kamiya/env.yaml")
	assert.Equal(t, "/etc/kamiya/env.yaml", opts.resolveConfigPath())

	opts.configPath = "/etc/kamiya/flag.yaml"
	assert.Equal(t, "/etc/kamiya/flag.yaml", opts.resolveConfigPath())
}

func TestBuildApp(t *testing.T) {
	cmsSrv := cmstest.New(apiKey)
	defer cmsSrv.Close()
	cmsSrv.List("/news")

	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.CMS.BaseURL = cmsSrv.BaseURL()
	cfg.CMS.APIKey = apiKey
	cfg.Site.AssetsDir = t.TempDir()
	cfg.Metrics.ListenAddr = ""

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, func() config.AppConfig { return cfg })
	require.NoError(t, err)
	defer a.close(ctx)

	require.NotNil(t, a.hub, "live sessions are on by default")
	assert.Nil(t, a.metricsHandler, "metrics share the site listener")
	assert.Equal(t, "memory", a.cache.Backend())

	for _, path := range []string{"/healthz", "/readyz", "/", "/menu", "/metrics"} {
		rec := httptest.NewRecorder()
		a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	ready := a.health.Ready(ctx)
	assert.True(t, ready.Ready)
	assert.Contains(t, ready.Checks, "cms")
	assert.Contains(t, ready.Checks, "assets")
}

func TestBuildApp_SeparateMetricsListener(t *testing.T) {
	cmsSrv := cmstest.New(apiKey)
	defer cmsSrv.Close()

	cfg := config.Defaults()
	cfg.CMS.BaseURL = cmsSrv.BaseURL()
	cfg.CMS.APIKey = apiKey
	cfg.Site.Live = false
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, func() config.AppConfig { return cfg })
	require.NoError(t, err)
	defer a.close(ctx)

	assert.Nil(t, a.hub)
	assert.NotNil(t, a.metricsHandler)

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiveSettings(t *testing.T) {
	cfg := config.Defaults()
	s := liveSettings(cfg)
	assert.Equal(t, cfg.Transition.CoverIn, s.Timings.CoverIn)
	assert.Equal(t, cfg.Transition.Safety, s.Timings.Safety)
	assert.Equal(t, cfg.Reveal.EntranceDuration, s.Entrance.Duration)
	assert.InDelta(t, cfg.Reveal.Threshold, s.RevealThreshold, 1e-9)
}

type failingCache struct {
	cache.Cache
	closed atomic.Bool
}

func (c *failingCache) Close() error {
	c.closed.Store(true)
	return errors.New("disk gone")
}

func TestAppClose_ReportsCleanupErrors(t *testing.T) {
	var out bytes.Buffer
	xglog.Configure(xglog.Config{Level: "info", Output: &out})
	t.Cleanup(func() { xglog.Configure(xglog.Config{Level: "info", Output: os.Stdout}) })

	c := &failingCache{}
	a := &app{cache: c}
	require.NotPanics(t, func() { a.close(context.Background()) })

	assert.True(t, c.closed.Load())
	assert.Contains(t, out.String(), "daemon.cleanup_failed")
	assert.Contains(t, out.String(), "disk gone")
}
