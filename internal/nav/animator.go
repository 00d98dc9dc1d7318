// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
)

// Animation names an animation phase, the page it belongs to and its timing.
type Animation struct {
	Name     string
	Path     string
	Delay    time.Duration
	Duration time.Duration
}

const (
	AnimCoverIn  = "cover-in"
	AnimCoverOut = "cover-out"
	AnimEntrance = "entrance"
)

// Animator plays an animation and calls done when it completes. done may
// never be called (a closed tab, a dropped message); callers must not rely on
// it, and must not be called from inside Play. The returned func cancels the
// animation and is safe to call repeatedly.
type Animator interface {
	Play(a Animation, done func()) (cancel func())
}

// TimedAnimator completes every animation after its delay plus duration on a clock.
type TimedAnimator struct {
	Clock clock.Clock
}

func (t TimedAnimator) Play(a Animation, done func()) func() {
	c := t.Clock
	if c == nil {
		c = clock.Real{}
	}
	timer := c.AfterFunc(a.Delay+a.Duration, done)
	return func() { timer.Stop() }
}
