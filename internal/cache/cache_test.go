// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"testing"
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var epoch = time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryCache_SetGetExpire(t *testing.T) {
	fc := clock.NewFake(epoch)
	c := newMemoryCache(0, fc)

	c.Set("news", []byte(`{"totalCount":0}`), time.Minute)
	val, ok := c.Get("news")
	require.True(t, ok)
	assert.Equal(t, `{"totalCount":0}`, string(val))

	fc.Advance(time.Minute + time.Second)
	_, ok = c.Get("news")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize, "expired entries linger until cleanup")

	assert.Equal(t, 1, c.deleteExpired())
	assert.Zero(t, c.Stats().CurrentSize)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := newMemoryCache(0, clock.NewFake(epoch))
	buf := []byte("abc")
	c.Set("k", buf, time.Minute)
	buf[0] = 'x'

	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(val))
}

func TestMemoryCache_DeleteClear(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Clear()
	assert.Zero(t, c.Stats().CurrentSize)
	require.NoError(t, c.Close())
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(time.Millisecond)
	c.Set("a", []byte("1"), time.Nanosecond)
	require.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("a", []byte("1"), time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, BackendNone, c.Backend())
}
