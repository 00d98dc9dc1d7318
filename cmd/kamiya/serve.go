// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/kamiya/internal/cache"
	"github.com/ManuGH/kamiya/internal/clock"
	"github.com/ManuGH/kamiya/internal/cms"
	"github.com/ManuGH/kamiya/internal/config"
	"github.com/ManuGH/kamiya/internal/content"
	"github.com/ManuGH/kamiya/internal/daemon"
	"github.com/ManuGH/kamiya/internal/health"
	"github.com/ManuGH/kamiya/internal/live"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/nav"
	"github.com/ManuGH/kamiya/internal/reveal"
	"github.com/ManuGH/kamiya/internal/telemetry"
	"github.com/ManuGH/kamiya/internal/version"
	"github.com/ManuGH/kamiya/internal/web"
	"github.com/ManuGH/kamiya/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const serviceName = "kamiya"

// runServe loads configuration, wires every component and blocks until ctx
// is cancelled.
func runServe(ctx context.Context, configPath string) error {
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str(xglog.FieldPath, configPath).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}
	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: serviceName, Version: cfg.Version})

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, configPath).
		Msg("configuration loaded")

	holder := config.NewHolder(cfg, loader, configPath)

	a, err := buildApp(ctx, cfg, holder.Get)
	if err != nil {
		return err
	}

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:         logger,
		SiteHandler:    a.handler,
		MetricsHandler: a.metricsHandler,
		MetricsAddr:    cfg.Metrics.ListenAddr,
	})
	if err != nil {
		a.close(ctx)
		return fmt.Errorf("create daemon: %w", err)
	}
	a.registerHooks(mgr)
	mgr.RegisterShutdownHook("config_watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})

	reloads := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloads)
	go applyReloads(ctx, reloads)
	if err := holder.StartWatcher(ctx); err != nil {
		// Hot reload is a convenience; serving continues without it.
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config watcher unavailable")
	}

	return mgr.Start(ctx)
}

// applyReloads applies settings that take effect without a restart. Live
// session timings are read from the holder when each session opens.
func applyReloads(ctx context.Context, reloads <-chan config.AppConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-reloads:
			xglog.SetLevel(cfg.LogLevel)
		}
	}
}

// app is the assembled object graph behind the site handler.
type app struct {
	handler        http.Handler
	metricsHandler http.Handler
	cache          cache.Cache
	tracing        *telemetry.Provider
	hub            *live.Hub
	health         *health.Manager
}

// buildApp wires the components for cfg. current returns the latest
// configuration and feeds per-session live settings.
func buildApp(ctx context.Context, cfg config.AppConfig, current func() config.AppConfig) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close(ctx)
		}
	}()

	var err error
	a.tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.cache, err = cache.New(cache.Options{
		Backend:         cfg.Cache.Backend,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		},
		BadgerPath: cfg.Cache.BadgerPath,
	}, xglog.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	client, err := cms.New(cms.Options{
		BaseURL:          cfg.CMS.BaseURL,
		ServiceDomain:    cfg.CMS.ServiceDomain,
		APIKey:           cfg.CMS.APIKey,
		Timeout:          cfg.CMS.Timeout,
		RateLimit:        rate.Limit(cfg.CMS.RateLimit),
		RateLimitBurst:   cfg.CMS.RateBurst,
		BreakerThreshold: cfg.CMS.BreakerThreshold,
		BreakerReset:     cfg.CMS.BreakerReset,
		Cache:            a.cache,
		CacheTTL:         cfg.Cache.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init cms client: %w", err)
	}

	site, err := content.LoadSite()
	if err != nil {
		return nil, fmt.Errorf("load site data: %w", err)
	}
	if cfg.Site.Name != "" {
		site.Store.Name = cfg.Site.Name
	}
	news := content.NewNewsService(content.NewsOptions{
		Source:      client,
		Endpoint:    cfg.CMS.NewsEndpoint,
		LatestLimit: cfg.Site.NewsLatestLimit,
		ListLimit:   cfg.Site.NewsListLimit,
	})

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	srv, err := web.NewServer(web.Options{
		Site:            site,
		News:            news,
		Renderer:        renderer,
		Clock:           clock.Real{},
		BaseURL:         cfg.Site.BaseURL,
		RevealThreshold: cfg.Reveal.Threshold,
		Live:            cfg.Site.Live,
		AssetsDir:       cfg.Site.AssetsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create web server: %w", err)
	}

	var liveHandler http.Handler
	if cfg.Site.Live {
		a.hub, err = live.NewHub(live.HubOptions{
			Pages:    srv,
			BaseURL:  cfg.Site.BaseURL,
			Settings: func() live.Settings { return liveSettings(current()) },
		})
		if err != nil {
			return nil, fmt.Errorf("create live hub: %w", err)
		}
		liveHandler = a.hub
	}

	a.health = health.NewManager(cfg.Version)
	a.health.RegisterChecker(health.NewBreakerChecker("cms", client.Breaker()))
	if p, isPinger := a.cache.(cache.Pinger); isPinger {
		a.health.RegisterChecker(health.NewPingChecker("cache_"+a.cache.Backend(), p, 2*time.Second))
	}
	a.health.RegisterChecker(health.NewDirChecker("assets", cfg.Site.AssetsDir))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = serviceName
	}
	a.handler = web.NewRouter(web.RouterOptions{
		Server: srv,
		Stack: middleware.StackConfig{
			EnableSecurityHeaders: true,
			CSP:                   middleware.DefaultCSP,
			TrustForwardedProto:   cfg.Server.TrustForwardedProto,
			EnableMetrics:         true,
			TracingService:        tracingService,
			EnableLogging:         true,
			EnableRateLimit:       cfg.RateLimit.Enabled,
			RateLimitRPM:          cfg.RateLimit.RPM,
			RateLimitBurst:        cfg.RateLimit.Burst,
		},
		Live:      liveHandler,
		Liveness:  a.health.ServeHealth,
		Readiness: a.health.ServeReady,
		Metrics:   cfg.Metrics.ListenAddr == "",
	})
	if cfg.Metrics.ListenAddr != "" {
		a.metricsHandler = promhttp.Handler()
	}

	ok = true
	return a, nil
}

// liveSettings maps configuration onto per-session timings.
func liveSettings(cfg config.AppConfig) live.Settings {
	return live.Settings{
		Timings: nav.Timings{
			CoverIn:  cfg.Transition.CoverIn,
			Settle:   cfg.Transition.Settle,
			CoverOut: cfg.Transition.CoverOut,
			Safety:   cfg.Transition.Safety,
		},
		Entrance: reveal.EntranceTimings{
			Delay:    cfg.Reveal.EntranceDelay,
			Duration: cfg.Reveal.EntranceDuration,
			Safety:   cfg.Reveal.EntranceSafety,
		},
		RevealThreshold: cfg.Reveal.Threshold,
	}
}

// registerHooks orders shutdown: hooks run LIFO, so live sessions close
// first and tracing flushes last.
func (a *app) registerHooks(mgr daemon.Manager) {
	if a.tracing != nil {
		mgr.RegisterShutdownHook("telemetry", a.tracing.Shutdown)
	}
	if a.cache != nil {
		mgr.RegisterShutdownHook("cache", func(context.Context) error { return a.cache.Close() })
	}
	if a.hub != nil {
		mgr.RegisterShutdownHook("live", func(context.Context) error {
			a.hub.Close()
			return nil
		})
	}
}

// close releases what buildApp acquired when the daemon never starts.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.hub != nil {
		a.hub.Close()
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing.Shutdown(context.WithoutCancel(ctx)))
	}
	if err := errors.Join(errs...); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "daemon.cleanup_failed").Msg("cleanup after failed start")
	}
}
