// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package reveal

import (
	"sync"
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/ManuGH/kamiya/internal/nav"
	"github.com/rs/zerolog"
)

// Style is the transform applied to the page content wrapper.
type Style struct {
	Opacity float64 `json:"opacity"`
	Scale   float64 `json:"scale"`
	OffsetY float64 `json:"offset_y"`
}

var (
	// EntranceFrom is where the page content starts before its entrance.
	EntranceFrom = Style{Opacity: 0, Scale: 1.1, OffsetY: 50}
	// EntranceTo is the neutral resting style.
	EntranceTo = Style{Opacity: 1, Scale: 1, OffsetY: 0}
)

// EntranceTimings control the page entrance.
type EntranceTimings struct {
	Delay    time.Duration
	Duration time.Duration
	Safety   time.Duration
}

// DefaultEntranceTimings waits 1s for the cover to clear, animates for 1s and
// forces the page loaded after 2s.
func DefaultEntranceTimings() EntranceTimings {
	return EntranceTimings{Delay: time.Second, Duration: time.Second, Safety: 2 * time.Second}
}

// Loaded reports that a mounted page finished its entrance.
type Loaded struct {
	Path string
	// Instant is set for pages that skip the entrance animation.
	Instant bool
	// Forced is set when the safety timeout marked the page loaded.
	Forced bool
}

// EntranceOptions configures an Entrance. Animator and Lock are required.
type EntranceOptions struct {
	Animator nav.Animator
	Lock     *nav.Lock
	Clock    clock.Clock
	Timings  EntranceTimings
	OnLoaded func(Loaded)
	Logger   *zerolog.Logger
}

const entranceOwner = "entrance"

// Entrance gates the page content of one browsing context. Every mount ends
// in exactly one Loaded, either from the animation or from the safety task,
// and releases the lock.
type Entrance struct {
	animator nav.Animator
	lock     *nav.Lock
	timings  EntranceTimings
	onLoaded func(Loaded)
	logger   zerolog.Logger
	scope    *clock.Scope

	mu         sync.Mutex
	gen        uint64
	path       string
	loaded     bool
	cancelAnim func()
	closed     bool
}

// NewEntrance returns an idle entrance gate.
func NewEntrance(opts EntranceOptions) *Entrance {
	if opts.Timings == (EntranceTimings{}) {
		opts.Timings = DefaultEntranceTimings()
	}
	logger := xglog.WithComponent("reveal")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Entrance{
		animator: opts.Animator,
		lock:     opts.Lock,
		timings:  opts.Timings,
		onLoaded: opts.OnLoaded,
		logger:   logger,
		scope:    clock.NewScope(opts.Clock),
	}
}

// Mount starts the entrance for path, cancelling whatever the previous mount
// still had pending. The root page is loaded immediately.
func (e *Entrance) Mount(path string) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.gen++
	gen := e.gen
	e.path = path
	e.loaded = false

	if nav.IsRoot(path) {
		e.mu.Unlock()
		e.finish(gen, true, false)
		return
	}

	e.cancelAnim = e.animator.Play(nav.Animation{
		Name:     nav.AnimEntrance,
		Path:     path,
		Delay:    e.timings.Delay,
		Duration: e.timings.Duration,
	}, func() { e.finish(gen, false, false) })
	e.scope.After(e.timings.Safety, func() { e.finish(gen, false, true) })
	e.mu.Unlock()

	e.logger.Debug().
		Str(xglog.FieldEvent, "reveal.entrance_start").
		Str(xglog.FieldPath, path).
		Dur("delay", e.timings.Delay).
		Msg("page entrance started")
}

// IsLoaded reports whether the current mount has finished.
func (e *Entrance) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Pending reports scheduled safety tasks.
func (e *Entrance) Pending() int {
	return e.scope.Pending()
}

// Unmount cancels the current mount without emitting Loaded.
func (e *Entrance) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.gen++
}

// Close cancels everything; later mounts are ignored.
func (e *Entrance) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cancelLocked()
	e.gen++
	e.scope.Close()
}

func (e *Entrance) cancelLocked() {
	if e.cancelAnim != nil {
		e.cancelAnim()
		e.cancelAnim = nil
	}
	e.scope.CancelAll()
}

func (e *Entrance) finish(gen uint64, instant, forced bool) {
	e.mu.Lock()
	if gen != e.gen || e.loaded {
		e.mu.Unlock()
		return
	}
	e.loaded = true
	e.cancelLocked()
	path := e.path
	e.mu.Unlock()

	released := e.lock.Release(entranceOwner)
	if forced {
		if released {
			metrics.IncSafetyRelease(entranceOwner)
		}
		e.logger.Warn().
			Str(xglog.FieldEvent, "reveal.entrance_forced").
			Str(xglog.FieldPath, path).
			Dur("after", e.timings.Safety).
			Msg("entrance did not complete, page forced loaded")
	}
	if e.onLoaded != nil {
		e.onLoaded(Loaded{Path: path, Instant: instant, Forced: forced})
	}
}
