// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scan

import (
	"sync"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/metrics"
)

// ProgressEvent is published after every counted unit.
type ProgressEvent struct {
	stream.Progress
	ScanID  string `json:"scanId,omitempty"`
	Percent int    `json:"percent"`
}

// Tracker owns the progress counters of the active scan. Increments are
// serialized and monotonic.
type Tracker struct {
	mu       sync.Mutex
	progress stream.Progress
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Reset starts a new run.
func (t *Tracker) Reset(total int, category string) {
	t.mu.Lock()
	t.progress = stream.Progress{TotalToValidate: total, CurrentCategory: category}
	t.mu.Unlock()
	metrics.SetScanProgress(0)
}

// Increment counts one finished unit and returns the new snapshot. It never
// moves past the total.
func (t *Tracker) Increment() stream.Progress {
	t.mu.Lock()
	if t.progress.ValidatedCount < t.progress.TotalToValidate {
		t.progress.ValidatedCount++
	}
	p := t.progress
	t.mu.Unlock()
	metrics.SetScanProgress(p.Ratio())
	return p
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() stream.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}
