// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSingleWriter(t *testing.T) {
	l := NewLock()
	require.True(t, l.Engage("overlay"))
	assert.False(t, l.Engage("entrance"), "second writer must not take the lock")
	assert.Equal(t, "overlay", l.Owner())

	assert.True(t, l.Release("entrance"))
	assert.False(t, l.Release("overlay"), "clearing a clear lock is a no-op")
	assert.False(t, l.Engaged())
	assert.Empty(t, l.Owner())
}

func TestLockReleaseIfOnlyClearsHolder(t *testing.T) {
	l := NewLock()
	assert.False(t, l.ReleaseIf(holder(1)), "nothing to clear")

	require.True(t, l.Engage(holder(2)))
	assert.False(t, l.ReleaseIf(holder(1)), "an older transition must not clear a newer one")
	assert.True(t, l.Engaged())

	assert.True(t, l.ReleaseIf(holder(2)))
	assert.False(t, l.Engaged())
}

func TestLockSubscribeDeliversLatestValue(t *testing.T) {
	l := NewLock()
	ch, unsubscribe := l.Subscribe()

	assert.False(t, <-ch)

	l.Engage("overlay")
	l.Release("overlay")
	l.Engage("overlay")

	// A slow reader only sees the most recent value.
	assert.True(t, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected stale value %v", v)
	default:
	}

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)

	// Changes after unsubscribe do not panic on the closed channel.
	l.Release("overlay")
}
