// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevels lists the accepted logLevel values, most verbose first. zerolog's
// fatal, panic and disabled levels are left out: they would hide warnings
// such as safety releases.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ErrInvalidLogLevel is returned for names outside LogLevels.
var ErrInvalidLogLevel = &Error{
	Field:   "logLevel",
	Message: "must be one of " + strings.Join(LogLevels, ", "),
}

// ParseLogLevel maps a configured name onto the zerolog level it selects.
// Matching ignores case and surrounding space.
func ParseLogLevel(s string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(LogLevels, name) {
		return zerolog.NoLevel, ErrInvalidLogLevel
	}
	return zerolog.ParseLevel(name)
}

// LogLevel records an error unless value names an accepted level.
func (v *Validator) LogLevel(field, value string) {
	if _, err := ParseLogLevel(value); err != nil {
		v.AddError(field, ErrInvalidLogLevel.Message, value)
	}
}
