// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package report exports scan results to disk.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/m3u"
	"github.com/ManuGH/streamcheck/internal/scan"
)

// WriteJSON writes the scan report as indented JSON. The file is replaced
// atomically so readers never observe a partial report.
func WriteJSON(ctx context.Context, path string, r scan.Report) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
}

// WriteWorkingM3U writes a playlist holding only the refs whose result is
// working, in input order.
func WriteWorkingM3U(ctx context.Context, path string, refs []stream.Ref, results []stream.Result) error {
	return writeAtomic(ctx, path, func(w io.Writer) error {
		return m3u.Write(w, WorkingEntries(refs, results))
	})
}

// WorkingEntries pairs refs with their results and keeps the working ones.
func WorkingEntries(refs []stream.Ref, results []stream.Result) []m3u.Entry {
	status := make(map[string]stream.Status, len(results))
	for _, r := range results {
		status[r.URL] = r.Status
	}
	var out []m3u.Entry
	for _, ref := range refs {
		if status[ref.URL] == stream.StatusWorking {
			out = append(out, m3u.Entry{Name: ref.Name, URL: ref.URL})
		}
	}
	return out
}

func writeAtomic(ctx context.Context, path string, write func(io.Writer) error) error {
	logger := log.WithContext(ctx, log.WithComponent("report"))

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		// no-op once committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	if err := write(pendingFile); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}

	logger.Info().
		Str(log.FieldEvent, "report.written").
		Str("path", path).
		Msg("report written")
	return nil
}
