// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"net/http"
	"testing"

	"github.com/ManuGH/kamiya/internal/cms/cmstest"
	"github.com/ManuGH/kamiya/internal/web/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter_Mounts(t *testing.T) {
	srv := cmstest.New(apiKey)
	defer srv.Close()
	srv.List("/news")

	live := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewRouter(RouterOptions{
		Server: newTestServer(t, srv),
		Stack: middleware.StackConfig{
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
		},
		Live:      live,
		Liveness:  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("alive")) },
		Readiness: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		Metrics:   true,
	})

	rec := get(t, h, "/healthz")
	assert.Equal(t, "alive", rec.Body.String())
	assert.Empty(t, rec.Header().Get(middleware.HeaderRequestID), "probes bypass the ingress stack")

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
	assert.Equal(t, http.StatusTeapot, get(t, h, "/live").Code)

	rec = get(t, h, "/news")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kamiya_http_request_duration_seconds")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nowhere").Code)
}

func TestNewRouter_WithoutOptionalRoutes(t *testing.T) {
	srv := cmstest.New(apiKey)
	defer srv.Close()

	h := NewRouter(RouterOptions{Server: newTestServer(t, srv)})
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/live").Code)
}
