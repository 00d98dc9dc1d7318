// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/kamiya/internal/metrics"
)

// Kind names a navigation signal.
type Kind string

const (
	KindStarting Kind = "navigation.starting"
	KindSettled  Kind = "navigation.settled"
)

// Event is a navigation signal carrying the target path.
type Event struct {
	Kind Kind
	Path string
	At   time.Time
}

// Subscription delivers events until closed.
type Subscription interface {
	C() <-chan Event
	Close() error
}

// Bus is an in-process pub/sub for navigation signals.
type Bus struct {
	mu   sync.RWMutex
	subs map[*busSub]struct{}
}

const subscriptionBuffer = 16

func NewBus() *Bus {
	return &Bus{subs: make(map[*busSub]struct{})}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

// Publish delivers ev to every subscriber interested in its kind. It blocks on
// a full subscriber until ctx is done, in which case the event is dropped for
// the remaining subscribers.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(ev.Kind) {
			continue
		}
		select {
		case s.ch <- ev:
		case <-ctx.Done():
			metrics.IncBusDrop(string(ev.Kind), dropReason(ctx.Err()))
			return fmt.Errorf("publish %s %q: %w", ev.Kind, ev.Path, ctx.Err())
		}
	}
	return nil
}

// Subscribe registers interest in the given kinds; no kinds means all.
func (b *Bus) Subscribe(kinds ...Kind) Subscription {
	s := &busSub{b: b, ch: make(chan Event, subscriptionBuffer)}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Subscribers reports the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

type busSub struct {
	b      *Bus
	ch     chan Event
	kinds  map[Kind]struct{}
	closed bool
}

func (s *busSub) wants(k Kind) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

func (s *busSub) C() <-chan Event {
	return s.ch
}

func (s *busSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	delete(s.b.subs, s)
	close(s.ch)
	return nil
}
