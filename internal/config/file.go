// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteDefault when the target exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

const defaultHeader = `# kamiya configuration
# Every key can be overridden by a KAMIYA_* environment variable.
# cms.serviceDomain (or cms.baseURL) and cms.apiKey must be set before serving.
`

// LoadFile decodes a YAML config file over the defaults, without env
// overrides, derived values or validation.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	if err := NewLoader(path, "").loadFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteDefault writes the built-in defaults to path. The write is atomic and
// durable: readers see either the old file or the complete new one.
func WriteDefault(path string, overwrite bool) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	body, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.WriteString(defaultHeader); err != nil {
		return fmt.Errorf("write config header: %w", err)
	}
	if _, err := pending.Write(body); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config file: %w", err)
	}
	return nil
}
