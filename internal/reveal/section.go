// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package reveal implements one-shot scroll reveals for page sections and the
// page-level entrance gate.
package reveal

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/kamiya/internal/metrics"
)

// DefaultThreshold is the visible fraction that triggers a reveal.
const DefaultThreshold = 0.1

// ErrClosed is returned when registering on a closed section or registry.
var ErrClosed = errors.New("reveal: closed")

// Target is an element waiting to be revealed.
type Target struct {
	ID    string        `json:"id"`
	Delay time.Duration `json:"-"`
}

// Entry is one intersection observation reported by the browser.
type Entry struct {
	ID           string
	Ratio        float64
	Intersecting bool
}

// Reveal tells the browser to animate a target into view.
type Reveal struct {
	Section string
	ID      string
	Delay   time.Duration
}

// Section watches the targets of one mounted page section. Each target is
// revealed at most once and is forgotten afterwards.
type Section struct {
	name      string
	threshold float64
	onReveal  func(Reveal)

	mu      sync.Mutex
	targets map[string]Target
	closed  bool
}

// NewSection returns an empty section. A threshold outside (0, 1] selects
// DefaultThreshold.
func NewSection(name string, threshold float64, onReveal func(Reveal)) *Section {
	return &Section{
		name:      name,
		threshold: normalizeThreshold(threshold),
		onReveal:  onReveal,
		targets:   make(map[string]Target),
	}
}

func normalizeThreshold(v float64) float64 {
	if v <= 0 || v > 1 {
		return DefaultThreshold
	}
	return v
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// Threshold returns the effective reveal threshold.
func (s *Section) Threshold() float64 { return s.threshold }

// Register starts watching t. Registering an ID again replaces its delay.
func (s *Section) Register(t Target) error {
	if t.ID == "" {
		return errors.New("reveal: target id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.targets[t.ID] = t
	return nil
}

// Observe handles an intersection entry and reports whether it revealed a
// target. Entries for unknown or already revealed targets are ignored.
func (s *Section) Observe(e Entry) bool {
	if !e.Intersecting || e.Ratio < s.threshold {
		return false
	}
	s.mu.Lock()
	t, ok := s.targets[e.ID]
	if !ok || s.closed {
		s.mu.Unlock()
		return false
	}
	delete(s.targets, e.ID)
	s.mu.Unlock()

	metrics.IncReveal(s.name)
	if s.onReveal != nil {
		s.onReveal(Reveal{Section: s.name, ID: t.ID, Delay: t.Delay})
	}
	return true
}

// Watchers reports how many targets are still waiting.
func (s *Section) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Close drops every remaining watcher. It is idempotent.
func (s *Section) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.targets)
}
