// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	"github.com/ManuGH/streamcheck/internal/probe"
	"github.com/ManuGH/streamcheck/internal/service"
)

func newProbeCmd(root *rootOptions) *cobra.Command {
	var (
		deep    bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Check a single stream and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if timeout <= 0 {
				cfg, _, err := root.load()
				if err != nil {
					return err
				}
				timeout = cfg.Scan.ProbeTimeout
			}
			client := httpx.NewClient(timeout)

			var res stream.Result
			if deep {
				res = service.NewDeepChecker(timeout, client).Check(cmd.Context(), args[0])
			} else {
				res = probe.New(timeout, probe.WithHTTPClient(client)).Check(cmd.Context(), args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "fetch the head of the stream and confirm a media signature")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout (default from config)")
	return cmd
}
