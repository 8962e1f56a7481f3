// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcheck/internal/daemon"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/m3u"
	"github.com/ManuGH/streamcheck/internal/report"
	"github.com/ManuGH/streamcheck/internal/scan"
)

type scanOptions struct {
	mode       string
	validation string
	category   string
	out        string
	workingM3U string
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <list.json|list.m3u>",
		Short: "Validate a stream list locally and write a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScan(ctx, cmd.OutOrStdout(), root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "scan mode: quick or preload (default from config)")
	cmd.Flags().StringVar(&opts.validation, "validation", "", "validation mode: strict, lenient or disabled (default from config)")
	cmd.Flags().StringVar(&opts.category, "category", "default", "category name recorded in the report")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the JSON report to this path")
	cmd.Flags().StringVar(&opts.workingM3U, "working-m3u", "", "write the working streams as M3U to this path")
	return cmd
}

func runScan(ctx context.Context, out io.Writer, root *rootOptions, opts *scanOptions, input string) error {
	req := scan.Request{Category: opts.category}
	if opts.mode != "" {
		m, err := stream.ParseScanMode(opts.mode)
		if err != nil {
			return err
		}
		req.ScanMode = m
	}
	if opts.validation != "" {
		v, err := stream.ParseValidationMode(opts.validation)
		if err != nil {
			return err
		}
		req.ValidationMode = v
	}

	refs, err := m3u.LoadRefs(input)
	if err != nil {
		return fmt.Errorf("load stream list: %w", err)
	}
	if len(refs) == 0 {
		return fmt.Errorf("no streams in %s", input)
	}
	req.Streams = refs

	cfg, _, err := root.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	components, err := daemon.Build(ctx, cfg, daemon.WithDirectPreload())
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}
	defer func() { _ = components.Close(context.WithoutCancel(ctx)) }()

	rep, err := components.Scans.Run(ctx, req)
	if err != nil {
		return err
	}

	counts := rep.Counts()
	fmt.Fprintf(out, "%s: %d streams, %d working, %d broken, %d unknown (mode=%s validation=%s)\n",
		rep.Category, len(rep.Results),
		counts[stream.StatusWorking], counts[stream.StatusBroken], counts[stream.StatusUnknown],
		rep.ScanMode, rep.ValidationMode)
	if rep.Cancelled {
		fmt.Fprintln(out, "scan cancelled before completion")
	}

	if opts.out != "" {
		if err := report.WriteJSON(ctx, opts.out, rep); err != nil {
			return err
		}
		fmt.Fprintf(out, "report written to %s\n", opts.out)
	}
	if opts.workingM3U != "" {
		if err := report.WriteWorkingM3U(ctx, opts.workingM3U, refs, rep.Results); err != nil {
			return err
		}
		fmt.Fprintf(out, "working playlist written to %s\n", opts.workingM3U)
	}
	return nil
}
