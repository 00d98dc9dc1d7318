// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package reveal

import (
	"sync"
)

// Registry holds the mounted sections of one browsing context.
type Registry struct {
	threshold float64
	onReveal  func(Reveal)

	mu       sync.Mutex
	sections map[string]*Section
	closed   bool
}

// NewRegistry returns an empty registry whose sections share threshold and
// the reveal callback.
func NewRegistry(threshold float64, onReveal func(Reveal)) *Registry {
	return &Registry{
		threshold: normalizeThreshold(threshold),
		onReveal:  onReveal,
		sections:  make(map[string]*Section),
	}
}

// Mount registers targets under name. A previous mount of the same section
// is closed first so a target is never watched twice.
func (r *Registry) Mount(name string, targets []Target) (*Section, error) {
	sec := NewSection(name, r.threshold, r.onReveal)
	for _, t := range targets {
		if err := sec.Register(t); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	prev := r.sections[name]
	r.sections[name] = sec
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return sec, nil
}

// Unmount closes the named section. It reports whether one was mounted.
func (r *Registry) Unmount(name string) bool {
	r.mu.Lock()
	sec, ok := r.sections[name]
	delete(r.sections, name)
	r.mu.Unlock()
	if ok {
		sec.Close()
	}
	return ok
}

// Observe routes an entry to its section.
func (r *Registry) Observe(name string, e Entry) bool {
	r.mu.Lock()
	sec, ok := r.sections[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return sec.Observe(e)
}

// Sections reports how many sections are mounted.
func (r *Registry) Sections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sections)
}

// Watchers reports the waiting targets across all sections.
func (r *Registry) Watchers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, sec := range r.sections {
		n += sec.Watchers()
	}
	return n
}

// UnmountAll closes every section but keeps the registry usable, as on a
// page swap.
func (r *Registry) UnmountAll() {
	r.mu.Lock()
	old := r.sections
	r.sections = make(map[string]*Section)
	r.mu.Unlock()
	for _, sec := range old {
		sec.Close()
	}
}

// Close unmounts everything; later mounts fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.UnmountAll()
}
