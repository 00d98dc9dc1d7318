// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package web

import (
	"net/http"

	"github.com/ManuGH/kamiya/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions assembles the public handler.
type RouterOptions struct {
	Server *Server
	Stack  middleware.StackConfig
	// Live serves the websocket endpoint; nil disables it.
	Live http.Handler
	// Liveness and Readiness back /healthz and /readyz when set.
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	// Metrics mounts /metrics on this router.
	Metrics bool
}

// NewRouter builds the site handler: probes and metrics outside the ingress
// stack, everything else inside it.
func NewRouter(opts RouterOptions) http.Handler {
	root := chi.NewRouter()

	if opts.Liveness != nil {
		root.Get("/healthz", opts.Liveness)
	}
	if opts.Readiness != nil {
		root.Get("/readyz", opts.Readiness)
	}
	if opts.Metrics {
		root.Handle("/metrics", promhttp.Handler())
	}

	root.Group(func(r chi.Router) {
		middleware.ApplyStack(r, opts.Stack)
		if opts.Live != nil {
			r.Get("/live", opts.Live.ServeHTTP)
		}
		r.Mount("/", opts.Server.Pages())
	})
	return root
}
