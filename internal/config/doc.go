// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads kamiya's configuration.
//
// Precedence is ENV (KAMIYA_*) > YAML file > built-in defaults. The YAML file
// is decoded strictly: unknown keys and multiple documents are rejected.
// Holder keeps the validated configuration and hot-reloads it when the file
// changes; only log level and live-session settings apply without a restart.
package config
