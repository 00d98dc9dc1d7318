// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package clock

import (
	"sync"
	"time"
)

// Scope owns a set of timed tasks. Closing the scope cancels every pending
// task, and callbacks that race with Close are dropped.
type Scope struct {
	clock Clock

	mu     sync.Mutex
	tasks  map[*Task]struct{}
	closed bool
}

// Task is a cancellable handle to a single scheduled callback.
type Task struct {
	scope *Scope
	timer Timer

	mu   sync.Mutex
	done bool
}

// NewScope creates a scope bound to c. A nil clock selects Real.
func NewScope(c Clock) *Scope {
	if c == nil {
		c = Real{}
	}
	return &Scope{clock: c, tasks: make(map[*Task]struct{})}
}

// After schedules fn after d. It returns nil if the scope is already closed.
func (s *Scope) After(d time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	t := &Task{scope: s}
	s.tasks[t] = struct{}{}
	t.timer = s.clock.AfterFunc(d, func() {
		if !t.finish() {
			return
		}
		fn()
	})
	return t
}

// finish marks the task done and detaches it from its scope. It returns
// false when the task was cancelled or the scope closed first.
func (t *Task) finish() bool {
	s := t.scope
	s.mu.Lock()
	defer s.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || s.closed {
		return false
	}
	t.done = true
	delete(s.tasks, t)
	return true
}

// Cancel stops the task. Cancelling a nil, fired or cancelled task is a no-op.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	s := t.scope
	s.mu.Lock()
	defer s.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(s.tasks, t)
}

// Pending reports how many tasks are scheduled and not yet fired or cancelled.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CancelAll cancels every pending task but keeps the scope usable.
func (s *Scope) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Close cancels every pending task; later After calls return nil.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelLocked()
}

func (s *Scope) cancelLocked() {
	for t := range s.tasks {
		t.mu.Lock()
		t.done = true
		if t.timer != nil {
			t.timer.Stop()
		}
		t.mu.Unlock()
		delete(s.tasks, t)
	}
}
