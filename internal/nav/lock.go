// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"sync"

	"github.com/ManuGH/kamiya/internal/metrics"
)

// Lock is the scroll-lock flag of one browsing context. Readers subscribe
// instead of polling; clearing an already clear lock is a no-op.
type Lock struct {
	mu      sync.Mutex
	engaged bool
	owner   string
	subs    map[int]chan bool
	nextSub int
}

// NewLock returns a released lock.
func NewLock() *Lock {
	return &Lock{subs: make(map[int]chan bool)}
}

// Engage sets the flag on behalf of owner. Only one writer may hold it at a
// time: engaging an already engaged lock returns false and leaves it as is.
func (l *Lock) Engage(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.engaged {
		return false
	}
	l.engaged = true
	l.owner = owner
	metrics.NavLockEngaged.Inc()
	l.notifyLocked()
	return true
}

// Release clears the flag regardless of who engaged it. It reports whether
// the flag was set.
func (l *Lock) Release(_ string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.engaged {
		return false
	}
	l.engaged = false
	l.owner = ""
	metrics.NavLockEngaged.Dec()
	l.notifyLocked()
	return true
}

// ReleaseIf clears the flag only while owner still holds it. It reports
// whether the flag was cleared.
func (l *Lock) ReleaseIf(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.engaged || l.owner != owner {
		return false
	}
	l.engaged = false
	l.owner = ""
	metrics.NavLockEngaged.Dec()
	l.notifyLocked()
	return true
}

// Engaged reports the current value.
func (l *Lock) Engaged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engaged
}

// Owner reports who engaged the lock, or "" when released.
func (l *Lock) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Subscribe returns a channel that immediately receives the current value and
// then the latest value after every change. Slow readers only ever see the
// most recent value. The returned func unsubscribes and closes the channel.
func (l *Lock) Subscribe() (<-chan bool, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan bool, 1)
	ch <- l.engaged
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
}

func (l *Lock) notifyLocked() {
	for _, ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		ch <- l.engaged
	}
}
