// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CMSRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_cms_requests_total",
		Help: "CMS requests by endpoint and outcome (ok, not_found, client_error, server_error, transport, circuit_open, cache_hit)",
	}, []string{"endpoint", "outcome"})

	CMSRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kamiya_cms_request_duration_seconds",
		Help:    "Upstream CMS request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kamiya_circuit_breaker_state",
		Help: "Circuit breaker state by component (active state=1, others 0)",
	}, []string{"component", "state"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component"})

	CacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kamiya_cache_ops_total",
		Help: "Cache operations by backend, operation and result",
	}, []string{"backend", "op", "result"})
)

// ObserveCMSRequest records one upstream call.
func ObserveCMSRequest(endpoint, outcome string, seconds float64) {
	CMSRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	if seconds > 0 {
		CMSRequestDuration.WithLabelValues(endpoint).Observe(seconds)
	}
}

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component string) {
	CircuitBreakerTrips.WithLabelValues(component).Inc()
}

// IncCacheOp counts a cache operation.
func IncCacheOp(backend, op, result string) {
	CacheOpsTotal.WithLabelValues(backend, op, result).Inc()
}
