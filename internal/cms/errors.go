// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound      = errors.New("cms: content not found")
	ErrUnauthorized  = errors.New("cms: api key rejected")
	ErrBadRequest    = errors.New("cms: request rejected (4xx)")
	ErrUpstreamError = errors.New("cms: internal error (5xx)")
	ErrUnavailable   = errors.New("cms: host unreachable or transport failure")
	ErrTimeout       = errors.New("cms: request timed out")
	ErrBadResponse   = errors.New("cms: invalid response format or malformed data")
	ErrCircuitOpen   = errors.New("cms: circuit open, upstream considered down")
)

// Error is a rich error type that wraps the sentinel errors with context.
type Error struct {
	Sentinel error
	Endpoint string
	Status   int
	Body     string
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cms: %s: %v", e.Endpoint, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// IsTransient reports whether err means the CMS itself is unhealthy
// (5xx, transport failure, timeout or an open circuit).
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamError) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCircuitOpen)
}

// countsAgainstBreaker excludes caller cancellations: a closed tab says
// nothing about upstream health.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrUpstreamError) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout)
}

func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= http.StatusInternalServerError:
		return ErrUpstreamError
	default:
		return ErrBadRequest
	}
}

func statusError(endpoint string, status int, body, apiKey string) *Error {
	return &Error{
		Sentinel: sentinelForStatus(status),
		Endpoint: endpoint,
		Status:   status,
		Body:     sanitizeBody(body, apiKey),
	}
}

func transportError(endpoint string, err error) *Error {
	sentinel := ErrUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		sentinel = ErrTimeout
	}
	return &Error{Sentinel: sentinel, Endpoint: endpoint, Err: err}
}

const maxErrorBody = 256

// sanitizeBody trims an upstream body for inclusion in errors and logs and
// strips the API key should the upstream echo it.
func sanitizeBody(body, apiKey string) string {
	body = strings.TrimSpace(body)
	if apiKey != "" {
		body = strings.ReplaceAll(body, apiKey, "***")
	}
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "…"
	}
	return body
}
