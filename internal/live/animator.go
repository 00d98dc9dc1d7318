// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package live

import (
	"sync"

	"github.com/ManuGH/kamiya/internal/nav"
)

// clientAnimator plays animations in the browser. Play sends the command;
// the browser's animation_done ack completes it. At most one animation per
// name is pending, a replay supersedes the previous one.
type clientAnimator struct {
	send func(Command)

	mu      sync.Mutex
	pending map[string]*pendingAnim
}

type pendingAnim struct {
	done func()
}

func newClientAnimator(send func(Command)) *clientAnimator {
	return &clientAnimator{send: send, pending: make(map[string]*pendingAnim)}
}

func (a *clientAnimator) Play(anim nav.Animation, done func()) func() {
	p := &pendingAnim{done: done}
	a.mu.Lock()
	a.pending[anim.Name] = p
	a.mu.Unlock()

	switch anim.Name {
	case nav.AnimCoverIn:
		a.send(coverCommand(PhaseIn, anim.Duration))
	case nav.AnimCoverOut:
		a.send(coverCommand(PhaseOut, anim.Duration))
	case nav.AnimEntrance:
		a.send(entranceCommand(anim.Path, anim.Delay, anim.Duration, false))
	}

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.pending[anim.Name] == p {
			delete(a.pending, anim.Name)
		}
	}
}

// complete runs the pending callback for name. Unknown or stale acks are
// ignored.
func (a *clientAnimator) complete(name string) bool {
	a.mu.Lock()
	p, ok := a.pending[name]
	delete(a.pending, name)
	a.mu.Unlock()
	if !ok {
		return false
	}
	p.done()
	return true
}

// Pending reports animations still waiting for an ack.
func (a *clientAnimator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}
