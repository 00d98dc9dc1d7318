// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package content

import (
	"errors"
	"net/http"

	"github.com/ManuGH/kamiya/internal/cms"
)

// State is the page state picked for a content fetch result.
type State int

const (
	StateOK State = iota
	StateEmpty
	StateMaintenance
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateEmpty:
		return "empty"
	case StateMaintenance:
		return "maintenance"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Outcome is the triage of one fetch.
type Outcome struct {
	State State
	// Status is the upstream HTTP status, 0 when there was none.
	Status int
	// RetryHint asks the page to suggest trying again later.
	RetryHint bool
}

// Classify maps a fetch result to a page state. A fetch is never retried;
// the outcome decides how the single degraded render looks.
func Classify(err error, count int) Outcome {
	if err == nil {
		if count == 0 {
			return Outcome{State: StateEmpty}
		}
		return Outcome{State: StateOK}
	}

	status := cms.StatusOf(err)
	switch {
	case status >= http.StatusInternalServerError || cms.IsTransient(err):
		return Outcome{State: StateMaintenance, Status: status}
	case status == http.StatusNotFound || errors.Is(err, cms.ErrNotFound):
		return Outcome{State: StateNotFound, Status: status}
	default:
		return Outcome{State: StateEmpty, Status: status, RetryHint: true}
	}
}

// HTTPStatus is the status code the rendered page is served with.
func (o Outcome) HTTPStatus() int {
	switch o.State {
	case StateMaintenance:
		return http.StatusServiceUnavailable
	case StateNotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}
