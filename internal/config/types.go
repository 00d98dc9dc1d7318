// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
// Field tags double as the YAML schema; unknown keys are rejected.
type AppConfig struct {
	// Version is injected from the binary, never read from YAML.
	Version string `yaml:"-"`

	LogLevel string `yaml:"logLevel"`
	DataDir  string `yaml:"dataDir"`

	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	CMS        CMSConfig        `yaml:"cms"`
	Cache      CacheConfig      `yaml:"cache"`
	Transition TransitionConfig `yaml:"transition"`
	Reveal     RevealConfig     `yaml:"reveal"`
	Site       SiteConfig       `yaml:"site"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds the public HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// TrustForwardedProto honours X-Forwarded-Proto from a fronting proxy.
	TrustForwardedProto bool `yaml:"trustForwardedProto"`
}

// MetricsConfig moves /metrics to a dedicated listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// CMSConfig configures the headless CMS client.
type CMSConfig struct {
	ServiceDomain    string        `yaml:"serviceDomain"`
	APIKey           string        `yaml:"apiKey"`
	BaseURL          string        `yaml:"baseURL"`
	Timeout          time.Duration `yaml:"timeout"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
	NewsEndpoint     string        `yaml:"newsEndpoint"`
}

// CacheConfig selects the CMS response cache backend.
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDB"`
	BadgerPath      string        `yaml:"badgerPath"`
}

// TransitionConfig holds the page transition overlay timings.
type TransitionConfig struct {
	CoverIn  time.Duration `yaml:"coverIn"`
	Settle   time.Duration `yaml:"settle"`
	CoverOut time.Duration `yaml:"coverOut"`
	Safety   time.Duration `yaml:"safety"`
}

// RevealConfig holds scroll reveal and page entrance settings.
type RevealConfig struct {
	Threshold        float64       `yaml:"threshold"`
	EntranceDelay    time.Duration `yaml:"entranceDelay"`
	EntranceDuration time.Duration `yaml:"entranceDuration"`
	EntranceSafety   time.Duration `yaml:"entranceSafety"`
}

// SiteConfig holds public site settings.
type SiteConfig struct {
	// Name overrides the store name from the embedded site data.
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseURL"`
	// AssetsDir serves /images; defaults to <dataDir>/images.
	AssetsDir       string `yaml:"assetsDir"`
	Live            bool   `yaml:"live"`
	NewsLatestLimit int    `yaml:"newsLatestLimit"`
	NewsListLimit   int    `yaml:"newsListLimit"`
}

// RateLimitConfig configures inbound per-IP rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// RPM is requests per minute per client IP.
	RPM   int `yaml:"rpm"`
	Burst int `yaml:"burst"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
