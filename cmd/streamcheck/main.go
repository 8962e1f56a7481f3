// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamcheck validates IPTV stream lists and serves the validation
// daemon.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcheck/internal/config"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/version"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "streamcheck",
		Short:         "Validate IPTV streams and serve the validation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.Configure(log.Config{Level: "info", Output: os.Stderr, Service: "streamcheck", Version: version.Version})
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to YAML config file (default $"+config.EnvPrefix+"CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newProbeCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
		newConfigCmd(opts),
	)
	return root
}

// resolveConfigPath prefers the flag, then the environment.
func (o *rootOptions) resolveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG"))
}

// load reads the effective configuration and applies its log settings.
func (o *rootOptions) load() (config.Config, *config.Loader, error) {
	path := o.resolveConfigPath()
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, nil, err
	}
	log.Reconfigure(log.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: cfg.LogService, Version: cfg.Version})
	return cfg, loader, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "streamcheck %s\n", version.String())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
