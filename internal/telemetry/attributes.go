// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	CMSEndpointKey = "cms.endpoint"
	CMSOutcomeKey  = "cms.outcome"
	CMSCacheKey    = "cms.cache"

	NavPathKey     = "nav.path"
	NavDecisionKey = "nav.decision"

	LiveSessionKey = "live.session_id"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// CMSAttributes describes one CMS read.
func CMSAttributes(endpoint, outcome string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CMSEndpointKey, endpoint),
		attribute.String(CMSOutcomeKey, outcome),
		attribute.Bool(CMSCacheKey, cached),
	}
}

// NavAttributes describes a navigation handled by a live session.
func NavAttributes(sessionID, path, decision string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(LiveSessionKey, sessionID))
	}
	attrs = append(attrs,
		attribute.String(NavPathKey, path),
		attribute.String(NavDecisionKey, decision),
	)
	return attrs
}
