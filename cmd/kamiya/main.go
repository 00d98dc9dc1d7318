// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command kamiya serves the restaurant site.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/kamiya/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "kamiya",
		Short: "割烹 神谷 site server",
		Long: `kamiya serves the restaurant site: pages rendered from embedded site data
and CMS news, plus a websocket endpoint driving page transitions.

Running kamiya without a subcommand is the same as "kamiya serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.resolveConfigPath())
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML); defaults to $KAMIYA_CONFIG or <dataDir>/config.yaml")

	root.AddCommand(
		newServeCmd(opts),
		newConfigCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the config file:
// --config, then KAMIYA_CONFIG, then <KAMIYA_DATA>/config.yaml if it exists.
// An empty result means ENV and defaults only.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("KAMIYA_CONFIG")); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(os.Getenv("KAMIYA_DATA"))
	if dataDir == "" {
		dataDir = config.Defaults().DataDir
	}
	auto := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the site server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.resolveConfigPath())
		},
	}
}
