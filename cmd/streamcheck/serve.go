// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcheck/internal/config"
	"github.com/ManuGH/streamcheck/internal/daemon"
	"github.com/ManuGH/streamcheck/internal/log"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the validation daemon (API, relay, validation service)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	logger := log.WithComponent("daemon")

	cfg, loader, err := opts.load()
	if err != nil {
		logger.Error().Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", opts.resolveConfigPath()).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}
	logger = log.WithComponent("daemon")
	source := "env+defaults"
	if loader.ConfigPath() != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", loader.ConfigPath()).
		Msg("configuration loaded")

	components, err := daemon.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.Listen, cfg.ShutdownTimeout), daemon.Deps{
		Logger:     logger,
		APIHandler: components.API.Handler(),
	})
	if err != nil {
		_ = components.Close(context.WithoutCancel(ctx))
		return err
	}
	components.RegisterShutdownHooks(mgr)

	holder := config.NewConfigHolder(cfg, loader, loader.ConfigPath())
	return daemon.NewApp(logger, mgr, holder, components).Run(ctx)
}
