// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/kamiya/internal/validate"
)

// CacheBackends lists the accepted cache.backend values.
var CacheBackends = []string{"memory", "redis", "badger", "none"}

// Validate checks the resolved configuration and reports every problem at once.
// It expects derived values (CMS base URL, badger path) to be filled in.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.LogLevel("logLevel", cfg.LogLevel)
	v.Directory("dataDir", cfg.DataDir, false)

	v.ListenAddr("server.listenAddr", cfg.Server.ListenAddr)
	v.PositiveDuration("server.readTimeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("server.writeTimeout", cfg.Server.WriteTimeout)
	v.PositiveDuration("server.idleTimeout", cfg.Server.IdleTimeout)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	if cfg.Metrics.ListenAddr != "" {
		v.ListenAddr("metrics.listenAddr", cfg.Metrics.ListenAddr)
		if cfg.Metrics.ListenAddr == cfg.Server.ListenAddr {
			v.AddError("metrics.listenAddr", "must differ from server.listenAddr", cfg.Metrics.ListenAddr)
		}
	}

	validateCMS(v, cfg.CMS)
	validateCache(v, cfg.Cache)

	t := cfg.Transition
	v.PositiveDuration("transition.coverIn", t.CoverIn)
	v.PositiveDuration("transition.coverOut", t.CoverOut)
	if t.Settle < 0 {
		v.AddError("transition.settle", "duration cannot be negative", t.Settle)
	}
	// The safety task must never cut a healthy transition short.
	v.DurationBelow("transition.coverIn+settle+coverOut", t.CoverIn+t.Settle+t.CoverOut, t.Safety, "transition.safety")

	r := cfg.Reveal
	v.FloatRange("reveal.threshold", r.Threshold, 0, 1)
	if r.EntranceDelay < 0 {
		v.AddError("reveal.entranceDelay", "duration cannot be negative", r.EntranceDelay)
	}
	v.PositiveDuration("reveal.entranceDuration", r.EntranceDuration)
	v.PositiveDuration("reveal.entranceSafety", r.EntranceSafety)

	v.NotEmpty("site.name", cfg.Site.Name)
	v.OptionalURL("site.baseURL", cfg.Site.BaseURL, []string{"http", "https"})
	v.Range("site.newsLatestLimit", cfg.Site.NewsLatestLimit, 1, 100)
	v.Range("site.newsListLimit", cfg.Site.NewsListLimit, 1, 100)

	if cfg.RateLimit.Enabled {
		v.Positive("rateLimit.rpm", cfg.RateLimit.RPM)
		v.Positive("rateLimit.burst", cfg.RateLimit.Burst)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Custom("telemetry.samplingRate", cfg.Telemetry.SamplingRate, func(x any) error {
			if f := x.(float64); f < 0 || f > 1 {
				return fmt.Errorf("must be between 0 and 1, got %g", f)
			}
			return nil
		})
	}

	return v.Err()
}

func validateCMS(v *validate.Validator, c CMSConfig) {
	if c.BaseURL == "" {
		v.AddError("cms.serviceDomain", "either cms.serviceDomain or cms.baseURL is required", c.ServiceDomain)
	} else {
		v.URL("cms.baseURL", c.BaseURL, []string{"http", "https"})
	}
	v.NotEmpty("cms.apiKey", c.APIKey)
	v.NotEmpty("cms.newsEndpoint", c.NewsEndpoint)
	v.PositiveDuration("cms.timeout", c.Timeout)
	if c.RateLimit <= 0 {
		v.AddError("cms.rateLimit", "must be positive", c.RateLimit)
	}
	v.Positive("cms.rateBurst", c.RateBurst)
	v.Positive("cms.breakerThreshold", c.BreakerThreshold)
	v.PositiveDuration("cms.breakerReset", c.BreakerReset)
}

func validateCache(v *validate.Validator, c CacheConfig) {
	v.OneOf("cache.backend", c.Backend, CacheBackends)
	if c.Backend == "none" {
		return
	}
	v.PositiveDuration("cache.ttl", c.TTL)
	if c.TTL > 24*time.Hour {
		v.AddError("cache.ttl", "must not exceed 24h", c.TTL)
	}
	switch c.Backend {
	case "memory":
		v.PositiveDuration("cache.cleanupInterval", c.CleanupInterval)
	case "redis":
		v.NotEmpty("cache.redisAddr", c.RedisAddr)
		v.Range("cache.redisDB", c.RedisDB, 0, 15)
	case "badger":
		v.NotEmpty("cache.badgerPath", c.BadgerPath)
	}
}
