// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"fmt"
	"strings"
	"time"

	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/rs/zerolog"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string
	CleanupInterval time.Duration
	Redis           RedisConfig
	BadgerPath      string
}

// New builds the configured backend. An unreachable redis falls back to the
// memory cache rather than failing startup.
func New(opts Options, logger zerolog.Logger) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemoryCache(opts.CleanupInterval), nil
	case BackendNone, "off", "disabled":
		return NewNoOpCache(), nil
	case BackendRedis:
		rc, err := NewRedisCache(opts.Redis, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "cache.redis_fallback").
				Str("addr", opts.Redis.Addr).
				Msg("redis unavailable, using in-memory cache")
			return NewMemoryCache(opts.CleanupInterval), nil
		}
		return rc, nil
	case BackendBadger:
		if opts.BadgerPath == "" {
			return nil, fmt.Errorf("cache: badger backend requires a path")
		}
		bc, err := OpenBadgerCache(opts.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return bc, nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", opts.Backend)
	}
}
