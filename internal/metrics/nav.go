// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NavLockEngaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kamiya_nav_locks_engaged",
		Help: "Number of live sessions whose scroll lock is currently engaged",
	})

	NavTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_nav_transitions_total",
		Help: "Navigation intents by decision (transition, passthrough, bypass, busy)",
	}, []string{"decision"})

	NavSafetyReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_nav_safety_releases_total",
		Help: "Lock releases forced by a safety timeout, by controller",
	}, []string{"controller"})

	RevealsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_reveals_total",
		Help: "One-shot scroll reveals fired, by section",
	}, []string{"section"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_bus_dropped_total",
		Help: "Navigation bus events dropped by kind and reason",
	}, []string{"kind", "reason"})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kamiya_live_sessions",
		Help: "Open live (websocket) sessions",
	})
)

// IncNavTransition counts an intent by its decision.
func IncNavTransition(decision string) {
	NavTransitionsTotal.WithLabelValues(decision).Inc()
}

// IncSafetyRelease counts a lock release forced by a safety timeout.
func IncSafetyRelease(controller string) {
	NavSafetyReleasesTotal.WithLabelValues(controller).Inc()
}

// IncReveal counts a fired reveal.
func IncReveal(section string) {
	RevealsTotal.WithLabelValues(section).Inc()
}

// IncBusDrop counts a dropped bus event.
func IncBusDrop(kind, reason string) {
	BusDroppedTotal.WithLabelValues(kind, reason).Inc()
}
