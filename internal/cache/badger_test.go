// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCache_SetGetDelete(t *testing.T) {
	c, err := OpenBadgerCache("", zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set("news:abc", []byte(`{"id":"abc"}`), time.Hour)
	val, ok := c.Get("news:abc")
	require.True(t, ok)
	assert.Equal(t, `{"id":"abc"}`, string(val))
	assert.Equal(t, 1, c.Stats().CurrentSize)

	c.Delete("news:abc")
	_, ok = c.Get("news:abc")
	assert.False(t, ok)
	require.NoError(t, c.HealthCheck(context.Background()))
}

func TestBadgerCache_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	c, err := OpenBadgerCache(dir, zerolog.Nop())
	require.NoError(t, err)
	c.Set("k", []byte("v"), time.Hour)
	require.NoError(t, c.Close())

	c, err = OpenBadgerCache(dir, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()
	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(val))
}

func TestBadgerCache_Clear(t *testing.T) {
	c, err := OpenBadgerCache("", zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", []byte("1"), time.Hour)
	c.Set("b", []byte("2"), 0)
	c.Clear()
	assert.Zero(t, c.Stats().CurrentSize)
}
