// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package live

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/kamiya/internal/nav"
	"github.com/ManuGH/kamiya/internal/reveal"
)

// Inbound message types.
const (
	msgNavigate       = "navigate"
	msgAnimationDone  = "animation_done"
	msgMountSection   = "mount_section"
	msgUnmountSection = "unmount_section"
	msgIntersect      = "intersect"
	msgContentMounted = "content_mounted"
)

// Outbound command types.
const (
	cmdLock     = "lock"
	cmdCover    = "cover"
	cmdSwap     = "swap"
	cmdReveal   = "reveal"
	cmdEntrance = "entrance"
	cmdLoaded   = "loaded"
	cmdFollow   = "follow"
	cmdState    = "state"
)

// Cover phases.
const (
	PhaseIn  = "in"
	PhaseOut = "out"
)

// TargetSpec is a reveal target as reported on mount.
type TargetSpec struct {
	ID      string `json:"id"`
	DelayMS int64  `json:"delay_ms"`
}

// Inbound is any message the browser sends. Type selects which fields apply.
type Inbound struct {
	Type string `json:"type"`

	// navigate
	nav.Link

	// animation_done
	Name string `json:"name,omitempty"`

	// mount_section, unmount_section, intersect
	Section      string       `json:"section,omitempty"`
	Targets      []TargetSpec `json:"targets,omitempty"`
	ID           string       `json:"id,omitempty"`
	Ratio        float64      `json:"ratio,omitempty"`
	Intersecting bool         `json:"intersecting,omitempty"`

	// content_mounted
	Path string `json:"path,omitempty"`
}

func decodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decode live message: %w", err)
	}
	if in.Type == "" {
		return in, fmt.Errorf("decode live message: missing type")
	}
	return in, nil
}

func (in Inbound) targets() []reveal.Target {
	out := make([]reveal.Target, 0, len(in.Targets))
	for _, t := range in.Targets {
		if t.DelayMS < 0 {
			t.DelayMS = 0
		}
		out = append(out, reveal.Target{ID: t.ID, Delay: time.Duration(t.DelayMS) * time.Millisecond})
	}
	return out
}

// Command is a message to the browser.
type Command struct {
	Type string `json:"type"`

	Engaged    *bool  `json:"engaged,omitempty"`
	Phase      string `json:"phase,omitempty"`
	DurationMS *int64 `json:"duration_ms,omitempty"`

	Path  string `json:"path,omitempty"`
	Title string `json:"title,omitempty"`
	HTML  string `json:"html,omitempty"`

	Section string `json:"section,omitempty"`
	ID      string `json:"id,omitempty"`
	DelayMS *int64 `json:"delay_ms,omitempty"`
	Instant bool   `json:"instant,omitempty"`

	Href  string `json:"href,omitempty"`
	State string `json:"state,omitempty"`
}

func ms(d time.Duration) *int64 {
	v := d.Milliseconds()
	return &v
}

func lockCommand(engaged bool) Command {
	return Command{Type: cmdLock, Engaged: &engaged}
}

func coverCommand(phase string, d time.Duration) Command {
	return Command{Type: cmdCover, Phase: phase, DurationMS: ms(d)}
}

func revealCommand(r reveal.Reveal) Command {
	return Command{Type: cmdReveal, Section: r.Section, ID: r.ID, DelayMS: ms(r.Delay)}
}

func entranceCommand(path string, delay, duration time.Duration, instant bool) Command {
	return Command{Type: cmdEntrance, Path: path, DelayMS: ms(delay), DurationMS: ms(duration), Instant: instant}
}
