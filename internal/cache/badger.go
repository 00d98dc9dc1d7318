// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const BackendBadger = "badger"

// BadgerCache persists cached responses on local disk so a restart does not
// start cold. Expiry is delegated to badger's per-entry TTL.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  counters
}

// OpenBadgerCache opens (or creates) a cache at path. An empty path keeps
// the database in memory.
func OpenBadgerCache(path string, logger zerolog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db, logger: logger}, nil
}

func (c *BadgerCache) Backend() string { return BackendBadger }

func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str(xglog.FieldEvent, "cache.get_failed").Str("key", key).Msg("badger get failed")
		}
		c.stats.miss(BackendBadger)
		return nil, false
	}
	c.stats.hit(BackendBadger)
	return out, true
}

func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "cache.set_failed").Str("key", key).Msg("badger set failed")
		return
	}
	c.stats.set(BackendBadger)
}

func (c *BadgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "cache.delete_failed").Str("key", key).Msg("badger delete failed")
	}
}

func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "cache.clear_failed").Msg("badger drop failed")
	}
}

func (c *BadgerCache) Stats() CacheStats {
	size := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	return c.stats.snapshot(size)
}

func (c *BadgerCache) Close() error { return c.db.Close() }

// HealthCheck reports whether the database is still open.
func (c *BadgerCache) HealthCheck(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("badger cache closed")
	}
	return nil
}
