// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/kamiya/internal/clock"
	xglog "github.com/ManuGH/kamiya/internal/log"
	"github.com/ManuGH/kamiya/internal/metrics"
	"github.com/rs/zerolog"
)

// State of the transition overlay.
type State string

const (
	StateIdle        State = "idle"
	StateCoveringIn  State = "covering_in"
	StateCovered     State = "covered"
	StateCoveringOut State = "covering_out"
)

type event string

const (
	evActivate  event = "activate"
	evCovered   event = "covered"
	evSettled   event = "settled"
	evUncovered event = "uncovered"
	evReset     event = "reset"
)

var overlayTransitions = []Transition[State, event]{
	{From: StateIdle, Event: evActivate, To: StateCoveringIn},
	{From: StateCoveringIn, Event: evCovered, To: StateCovered},
	{From: StateCovered, Event: evSettled, To: StateCoveringOut},
	{From: StateCoveringOut, Event: evUncovered, To: StateIdle},
	{From: StateIdle, Event: evReset, To: StateIdle},
	{From: StateCoveringIn, Event: evReset, To: StateIdle},
	{From: StateCovered, Event: evReset, To: StateIdle},
	{From: StateCoveringOut, Event: evReset, To: StateIdle},
}

const lockOwner = "overlay"

// holder names the lock owner for one transition so a late safety task
// cannot clear a lock taken by a newer one.
func holder(gen uint64) string {
	return lockOwner + "#" + strconv.FormatUint(gen, 10)
}

var (
	// ErrBusy rejects an activation while a transition is in flight.
	ErrBusy = errors.New("nav: transition already in progress")
	// ErrClosed rejects calls after Close.
	ErrClosed = errors.New("nav: coordinator closed")
)

// Router performs the actual route change. It is called from the
// coordinator's loop and must not call back into the coordinator synchronously.
type Router interface {
	Navigate(ctx context.Context, path string) error
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, path string) error

func (f RouterFunc) Navigate(ctx context.Context, path string) error { return f(ctx, path) }

// Timings are the overlay durations. They are tuned for perceived smoothness;
// only their ordering matters for correctness.
type Timings struct {
	CoverIn  time.Duration
	Settle   time.Duration
	CoverOut time.Duration
	Safety   time.Duration
}

// DefaultTimings returns 500ms in, 200ms settle, 500ms out, 5s safety.
func DefaultTimings() Timings {
	return Timings{
		CoverIn:  500 * time.Millisecond,
		Settle:   200 * time.Millisecond,
		CoverOut: 500 * time.Millisecond,
		Safety:   5 * time.Second,
	}
}

// StateChange is reported to the observer on every transition.
type StateChange struct {
	From State
	To   State
	Path string
}

// Options configures a Coordinator. Router, Animator and Lock are required.
type Options struct {
	Router   Router
	Animator Animator
	Lock     *Lock
	Bus      *Bus
	Clock    clock.Clock
	Timings  Timings
	Logger   *zerolog.Logger
	// Observer is called on the loop goroutine after every state change.
	Observer func(StateChange)
}

// Coordinator runs the transition overlay for one browsing context. All state
// changes happen on a single loop goroutine fed by an inbox channel; timers
// and animation callbacks only post messages.
type Coordinator struct {
	router   Router
	animator Animator
	lock     *Lock
	bus      *Bus
	clock    clock.Clock
	timings  Timings
	logger   zerolog.Logger
	observer func(StateChange)

	fsm   *Machine[State, event]
	scope *clock.Scope
	inbox chan message

	// loop-owned
	gen        uint64
	path       string
	cancelAnim func()
	safety     *clock.Task
	deadline   time.Time

	state     atomic.Value // State
	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

type message interface{}

type activateMsg struct {
	intent Intent
	reply  chan error
}

type animDoneMsg struct {
	gen  uint64
	name string
}

type timerMsg struct {
	gen  uint64
	kind string
}

type syncMsg struct {
	reply chan struct{}
}

const (
	timerSettle = "settle"
	timerSafety = "safety"

	publishTimeout = 250 * time.Millisecond
)

// NewCoordinator validates opts and returns an idle coordinator. Call Start to
// run its loop.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("nav: router is required")
	}
	if opts.Animator == nil {
		return nil, fmt.Errorf("nav: animator is required")
	}
	if opts.Lock == nil {
		return nil, fmt.Errorf("nav: lock is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Timings == (Timings{}) {
		opts.Timings = DefaultTimings()
	}
	logger := xglog.WithComponent("nav")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	fsm, err := NewMachine(StateIdle, overlayTransitions)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		router:   opts.Router,
		animator: opts.Animator,
		lock:     opts.Lock,
		bus:      opts.Bus,
		clock:    opts.Clock,
		timings:  opts.Timings,
		logger:   logger,
		observer: opts.Observer,
		fsm:      fsm,
		scope:    clock.NewScope(opts.Clock),
		inbox:    make(chan message, 32),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.state.Store(StateIdle)
	return c, nil
}

// Start launches the loop. ctx is handed to the router; cancelling it closes
// the coordinator.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.run(ctx)
	})
}

// State returns the last observed overlay state.
func (c *Coordinator) State() State {
	return c.state.Load().(State)
}

// Lock returns the lock flag owned by this coordinator.
func (c *Coordinator) Lock() *Lock {
	return c.lock
}

// Activate hands an internal navigation to the coordinator and waits until
// the loop has accepted or rejected it. Root paths pass straight through.
func (c *Coordinator) Activate(intent Intent) error {
	if !intent.IsInternal {
		metrics.IncNavTransition(string(DecisionBypass))
		return nil
	}
	reply := make(chan error, 1)
	if !c.post(activateMsg{intent: intent, reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// Close cancels pending timers and animations, releases the lock and stops
// the loop. It is idempotent.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		if c.started.Load() {
			<-c.done
			return
		}
		c.teardown()
		close(c.done)
	})
}

// sync blocks until every message posted before it has been handled.
func (c *Coordinator) sync() {
	reply := make(chan struct{})
	if !c.post(syncMsg{reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-c.done:
	}
}

func (c *Coordinator) post(m message) bool {
	select {
	case <-c.stop:
		return false
	default:
	}
	select {
	case c.inbox <- m:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case m := <-c.inbox:
			c.handle(ctx, m)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, m message) {
	switch msg := m.(type) {
	case activateMsg:
		msg.reply <- c.onActivate(ctx, msg.intent)
	case animDoneMsg:
		if msg.gen != c.gen {
			return
		}
		c.onAnimationDone(ctx, msg.name)
	case timerMsg:
		if msg.gen != c.gen {
			return
		}
		switch msg.kind {
		case timerSettle:
			c.onSettleElapsed()
		case timerSafety:
			c.onSafety()
		}
	case syncMsg:
		close(msg.reply)
	}
}

func (c *Coordinator) onActivate(ctx context.Context, intent Intent) error {
	if c.fsm.State() != StateIdle {
		metrics.IncNavTransition("busy")
		c.logger.Debug().
			Str(xglog.FieldEvent, "nav.busy").
			Str(xglog.FieldPath, intent.TargetPath).
			Str("state", string(c.fsm.State())).
			Msg("navigation ignored while transition in flight")
		return ErrBusy
	}

	c.gen++
	c.path = intent.TargetPath

	if IsRoot(intent.TargetPath) {
		return c.passthrough(ctx, intent.TargetPath)
	}

	metrics.IncNavTransition(string(DecisionTransition))
	gen, path := c.gen, c.path
	owner := holder(gen)
	c.lock.Engage(owner)
	c.transition(evActivate)
	c.publish(ctx, KindStarting)

	// The safety bound clears the lock from the timer goroutine so a loop
	// stuck in the router cannot hold it. The loop resets state afterwards.
	c.deadline = c.clock.Now().Add(c.timings.Safety)
	c.safety = c.scope.After(c.timings.Safety, func() {
		if c.lock.ReleaseIf(owner) {
			metrics.IncSafetyRelease("overlay")
			c.logger.Warn().
				Str(xglog.FieldEvent, "nav.safety_release").
				Str(xglog.FieldPath, path).
				Str("state", string(c.State())).
				Dur("after", c.timings.Safety).
				Msg("safety timeout released scroll lock")
		}
		c.post(timerMsg{gen: gen, kind: timerSafety})
	})
	c.play(AnimCoverIn, c.timings.CoverIn)
	return nil
}

// passthrough changes to the root route without any cover; the root page
// plays its own entrance.
func (c *Coordinator) passthrough(ctx context.Context, path string) error {
	metrics.IncNavTransition(string(DecisionPassthrough))
	c.publish(ctx, KindStarting)
	err := c.router.Navigate(ctx, path)
	c.lock.Release(lockOwner)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "nav.route_failed").
			Str(xglog.FieldPath, path).
			Msg("passthrough route change failed")
		return nil
	}
	c.publish(ctx, KindSettled)
	c.logger.Debug().
		Str(xglog.FieldEvent, "nav.passthrough").
		Str(xglog.FieldPath, path).
		Msg("root navigation passed through")
	return nil
}

func (c *Coordinator) onAnimationDone(ctx context.Context, name string) {
	switch {
	case name == AnimCoverIn && c.fsm.State() == StateCoveringIn:
		c.cancelAnim = nil
		c.transition(evCovered)
		navCtx, cancel := context.WithTimeout(ctx, c.deadline.Sub(c.clock.Now()))
		err := c.router.Navigate(navCtx, c.path)
		cancel()
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "nav.route_failed").
				Str(xglog.FieldPath, c.path).
				Msg("route change failed, uncovering")
			c.reset()
			return
		}
		c.publish(ctx, KindSettled)
		gen := c.gen
		c.scope.After(c.timings.Settle, func() {
			c.post(timerMsg{gen: gen, kind: timerSettle})
		})
	case name == AnimCoverOut && c.fsm.State() == StateCoveringOut:
		c.cancelAnim = nil
		c.transition(evUncovered)
		c.safety.Cancel()
		c.safety = nil
		c.lock.Release(lockOwner)
		c.logger.Debug().
			Str(xglog.FieldEvent, "nav.uncovered").
			Str(xglog.FieldPath, c.path).
			Msg("transition complete")
	}
}

func (c *Coordinator) onSettleElapsed() {
	if c.fsm.State() != StateCovered {
		return
	}
	c.transition(evSettled)
	c.play(AnimCoverOut, c.timings.CoverOut)
}

// onSafety finishes what the safety task started: the lock is already clear.
func (c *Coordinator) onSafety() {
	c.safety = nil
	c.reset()
}

// reset cancels everything in flight for the current generation and returns
// to idle with the lock released.
func (c *Coordinator) reset() {
	if c.cancelAnim != nil {
		c.cancelAnim()
		c.cancelAnim = nil
	}
	c.scope.CancelAll()
	c.safety = nil
	c.lock.Release(lockOwner)
	c.gen++
	if c.fsm.State() != StateIdle {
		c.transition(evReset)
	}
}

func (c *Coordinator) play(name string, d time.Duration) {
	gen := c.gen
	c.cancelAnim = c.animator.Play(Animation{Name: name, Path: c.path, Duration: d}, func() {
		c.post(animDoneMsg{gen: gen, name: name})
	})
}

func (c *Coordinator) transition(ev event) {
	from, to, err := c.fsm.Fire(ev)
	if err != nil {
		c.logger.Error().Err(err).Str(xglog.FieldEvent, "nav.fsm_rejected").Msg("unexpected overlay transition")
		return
	}
	c.state.Store(to)
	c.logger.Debug().
		Str(xglog.FieldEvent, "nav.state").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Str(xglog.FieldPath, c.path).
		Msg("overlay state changed")
	if c.observer != nil {
		c.observer(StateChange{From: from, To: to, Path: c.path})
	}
}

func (c *Coordinator) publish(ctx context.Context, kind Kind) {
	if c.bus == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.bus.Publish(pubCtx, Event{Kind: kind, Path: c.path, At: c.clock.Now()}); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "nav.publish_failed").Msg("navigation signal dropped")
	}
}

func (c *Coordinator) teardown() {
	if c.cancelAnim != nil {
		c.cancelAnim()
		c.cancelAnim = nil
	}
	c.scope.Close()
	c.lock.Release(lockOwner)
	if c.fsm.State() != StateIdle {
		c.transition(evReset)
	}
}
