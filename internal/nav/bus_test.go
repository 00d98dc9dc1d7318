// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFiltersByKind(t *testing.T) {
	b := NewBus()
	all := b.Subscribe()
	settled := b.Subscribe(KindSettled)
	defer all.Close()
	defer settled.Close()

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, Event{Kind: KindStarting, Path: "/news"}))
	require.NoError(t, b.Publish(ctx, Event{Kind: KindSettled, Path: "/news"}))

	assert.Equal(t, KindStarting, (<-all.C()).Kind)
	assert.Equal(t, KindSettled, (<-all.C()).Kind)
	ev := <-settled.C()
	assert.Equal(t, KindSettled, ev.Kind)
	assert.Equal(t, "/news", ev.Path)
	assert.Len(t, settled.C(), 0)
}

func TestBusDropsOnFullSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	for i := 0; i < subscriptionBuffer; i++ {
		require.NoError(t, b.Publish(ctx, Event{Kind: KindStarting, Path: "/news"}))
	}

	before := testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues(string(KindSettled), "timeout"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Publish(ctx, Event{Kind: KindSettled, Path: "/news"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	after := testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues(string(KindSettled), "timeout"))
	assert.Equal(t, before+1, after)
}

func TestBusCloseIsIdempotent(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Zero(t, b.Subscribers())

	_, ok := <-sub.C()
	assert.False(t, ok)
	require.NoError(t, b.Publish(context.Background(), Event{Kind: KindStarting}))
}
