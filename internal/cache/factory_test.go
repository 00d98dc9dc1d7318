// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		opts    Options
		backend string
		wantErr bool
	}{
		{name: "default", opts: Options{}, backend: BackendMemory},
		{name: "memory", opts: Options{Backend: "Memory"}, backend: BackendMemory},
		{name: "none", opts: Options{Backend: "none"}, backend: BackendNone},
		{name: "redis", opts: Options{Backend: "redis", Redis: RedisConfig{Addr: mr.Addr()}}, backend: BackendRedis},
		{name: "redis unreachable falls back", opts: Options{Backend: "redis", Redis: RedisConfig{Addr: "127.0.0.1:1"}}, backend: BackendMemory},
		{name: "badger", opts: Options{Backend: "badger", BadgerPath: filepath.Join(t.TempDir(), "c")}, backend: BackendBadger},
		{name: "badger without path", opts: Options{Backend: "badger"}, wantErr: true},
		{name: "unknown", opts: Options{Backend: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts, zerolog.Nop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer c.Close()
			assert.Equal(t, tt.backend, c.Backend())
		})
	}
}
