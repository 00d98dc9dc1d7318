// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr     = ":8080"
	DefaultSiteName       = "割烹 神谷"
	DefaultCMSTimeout     = 10 * time.Second
	DefaultCacheTTL       = 60 * time.Second
	DefaultCacheCleanup   = 5 * time.Minute
	DefaultCacheBackend   = "memory"
	DefaultRateLimitRPM   = 600
	DefaultRevealThresh   = 0.1
	DefaultOTLPEndpoint   = "localhost:4317"
	DefaultOTLPExporter   = "grpc"
	cmsBaseURLPattern     = "https://%s.microcms.io/api/v1"
	defaultNewsLatestSize = 5
	defaultNewsListSize   = 100
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		DataDir:  "./data",
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		CMS: CMSConfig{
			Timeout:          DefaultCMSTimeout,
			RateLimit:        10,
			RateBurst:        20,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			NewsEndpoint:     "news",
		},
		Cache: CacheConfig{
			Backend:         DefaultCacheBackend,
			TTL:             DefaultCacheTTL,
			CleanupInterval: DefaultCacheCleanup,
		},
		Transition: TransitionConfig{
			CoverIn:  500 * time.Millisecond,
			Settle:   200 * time.Millisecond,
			CoverOut: 500 * time.Millisecond,
			Safety:   5 * time.Second,
		},
		Reveal: RevealConfig{
			Threshold:        DefaultRevealThresh,
			EntranceDelay:    time.Second,
			EntranceDuration: time.Second,
			EntranceSafety:   2 * time.Second,
		},
		Site: SiteConfig{
			Name:            DefaultSiteName,
			Live:            true,
			NewsLatestLimit: defaultNewsLatestSize,
			NewsListLimit:   defaultNewsListSize,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPM:     DefaultRateLimitRPM,
			Burst:   DefaultRateLimitRPM,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultOTLPExporter,
			Endpoint:     DefaultOTLPEndpoint,
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	resolveDerived(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path onto cfg with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// mergeEnvConfig overlays KAMIYA_* environment variables on cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("KAMIYA_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = l.envString("KAMIYA_DATA", cfg.DataDir)

	cfg.Server.ListenAddr = l.envString("KAMIYA_LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration("KAMIYA_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("KAMIYA_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("KAMIYA_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("KAMIYA_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.TrustForwardedProto = l.envBool("KAMIYA_TRUST_PROXY", cfg.Server.TrustForwardedProto)

	cfg.Metrics.ListenAddr = l.envString("KAMIYA_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.CMS.ServiceDomain = l.envString("KAMIYA_CMS_SERVICE_DOMAIN", cfg.CMS.ServiceDomain)
	cfg.CMS.APIKey = l.envString("KAMIYA_CMS_API_KEY", cfg.CMS.APIKey)
	cfg.CMS.BaseURL = l.envString("KAMIYA_CMS_BASE_URL", cfg.CMS.BaseURL)
	cfg.CMS.Timeout = l.envDuration("KAMIYA_CMS_TIMEOUT", cfg.CMS.Timeout)
	cfg.CMS.RateLimit = l.envFloat("KAMIYA_CMS_RATE_LIMIT", cfg.CMS.RateLimit)
	cfg.CMS.RateBurst = l.envInt("KAMIYA_CMS_RATE_BURST", cfg.CMS.RateBurst)
	cfg.CMS.BreakerThreshold = l.envInt("KAMIYA_CMS_BREAKER_THRESHOLD", cfg.CMS.BreakerThreshold)
	cfg.CMS.BreakerReset = l.envDuration("KAMIYA_CMS_BREAKER_RESET", cfg.CMS.BreakerReset)
	cfg.CMS.NewsEndpoint = l.envString("KAMIYA_CMS_NEWS_ENDPOINT", cfg.CMS.NewsEndpoint)

	cfg.Cache.Backend = l.envString("KAMIYA_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = l.envDuration("KAMIYA_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.CleanupInterval = l.envDuration("KAMIYA_CACHE_CLEANUP", cfg.Cache.CleanupInterval)
	cfg.Cache.RedisAddr = l.envString("KAMIYA_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("KAMIYA_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("KAMIYA_REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.BadgerPath = l.envString("KAMIYA_CACHE_BADGER_PATH", cfg.Cache.BadgerPath)

	cfg.Transition.CoverIn = l.envDuration("KAMIYA_TRANSITION_COVER_IN", cfg.Transition.CoverIn)
	cfg.Transition.Settle = l.envDuration("KAMIYA_TRANSITION_SETTLE", cfg.Transition.Settle)
	cfg.Transition.CoverOut = l.envDuration("KAMIYA_TRANSITION_COVER_OUT", cfg.Transition.CoverOut)
	cfg.Transition.Safety = l.envDuration("KAMIYA_TRANSITION_SAFETY", cfg.Transition.Safety)

	cfg.Reveal.Threshold = l.envFloat("KAMIYA_REVEAL_THRESHOLD", cfg.Reveal.Threshold)
	cfg.Reveal.EntranceDelay = l.envDuration("KAMIYA_ENTRANCE_DELAY", cfg.Reveal.EntranceDelay)
	cfg.Reveal.EntranceDuration = l.envDuration("KAMIYA_ENTRANCE_DURATION", cfg.Reveal.EntranceDuration)
	cfg.Reveal.EntranceSafety = l.envDuration("KAMIYA_ENTRANCE_SAFETY", cfg.Reveal.EntranceSafety)

	cfg.Site.Name = l.envString("KAMIYA_SITE_NAME", cfg.Site.Name)
	cfg.Site.BaseURL = l.envString("KAMIYA_SITE_BASE_URL", cfg.Site.BaseURL)
	cfg.Site.AssetsDir = l.envString("KAMIYA_SITE_ASSETS_DIR", cfg.Site.AssetsDir)
	cfg.Site.Live = l.envBool("KAMIYA_LIVE", cfg.Site.Live)
	cfg.Site.NewsLatestLimit = l.envInt("KAMIYA_NEWS_LATEST_LIMIT", cfg.Site.NewsLatestLimit)
	cfg.Site.NewsListLimit = l.envInt("KAMIYA_NEWS_LIST_LIMIT", cfg.Site.NewsListLimit)

	cfg.RateLimit.Enabled = l.envBool("KAMIYA_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RPM = l.envInt("KAMIYA_RATELIMIT_RPM", cfg.RateLimit.RPM)
	cfg.RateLimit.Burst = l.envInt("KAMIYA_RATELIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Telemetry.Enabled = l.envBool("KAMIYA_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("KAMIYA_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("KAMIYA_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("KAMIYA_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = l.envString("KAMIYA_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
}

// resolveDerived fills values that depend on other keys.
func resolveDerived(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.CMS.BaseURL == "" && cfg.CMS.ServiceDomain != "" {
		cfg.CMS.BaseURL = fmt.Sprintf(cmsBaseURLPattern, cfg.CMS.ServiceDomain)
	}
	cfg.CMS.BaseURL = strings.TrimRight(cfg.CMS.BaseURL, "/")
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	if cfg.Cache.BadgerPath == "" {
		cfg.Cache.BadgerPath = filepath.Join(cfg.DataDir, "cache")
	}
	if cfg.Site.AssetsDir == "" {
		cfg.Site.AssetsDir = filepath.Join(cfg.DataDir, "images")
	}
}
