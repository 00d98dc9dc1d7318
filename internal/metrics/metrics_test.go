// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestSetCircuitBreakerStateIsOneHot(t *testing.T) {
	SetCircuitBreakerState("cms-test", "open")
	require.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cms-test", "open")))
	require.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cms-test", "closed")))

	SetCircuitBreakerState("cms-test", "closed")
	require.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cms-test", "open")))
	require.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cms-test", "closed")))
}

func TestObserveCMSRequestCounts(t *testing.T) {
	c := CMSRequestsTotal.WithLabelValues("news-test", "ok")
	before := counterValue(t, c)
	ObserveCMSRequest("news-test", "ok", 0.2)
	require.Equal(t, before+1, counterValue(t, c))
}
