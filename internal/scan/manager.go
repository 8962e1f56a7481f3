// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scan

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/store"
)

var (
	// ErrScanActive is returned when a scan is requested while one runs.
	ErrScanActive = errors.New("a scan is already active")
	// ErrNoActiveScan is returned when cancelling with nothing running.
	ErrNoActiveScan = errors.New("no active scan")
)

// Scan states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
)

// Category states.
const (
	CategoryIdle       = "idle"
	CategoryValidating = "validating"
	CategoryCompleted  = "completed"
)

// Status is the externally visible state of the current or last scan.
type Status struct {
	ScanID         string                `json:"scanId,omitempty"`
	State          string                `json:"state"`
	Category       string                `json:"category,omitempty"`
	ScanMode       stream.ScanMode       `json:"scanMode,omitempty"`
	ValidationMode stream.ValidationMode `json:"validationMode,omitempty"`
	StartedAt      int64                 `json:"startedAt,omitempty"`
	FinishedAt     int64                 `json:"finishedAt,omitempty"`
	stream.Progress
	Percent int `json:"percent"`
}

// CategoryState is the per-category scan state shown to the UI.
type CategoryState struct {
	Category  string    `json:"category"`
	State     string    `json:"state"`
	Cancelled bool      `json:"cancelled,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults are the modes used when a request leaves them empty.
type Defaults struct {
	ScanMode       stream.ScanMode
	ValidationMode stream.ValidationMode
}

// Manager owns the single active scan of the process.
type Manager struct {
	orch      *Orchestrator
	tracker   *Tracker
	publisher store.Notifier
	logger    zerolog.Logger

	isScanning atomic.Bool

	mu         sync.RWMutex
	status     Status
	categories map[string]CategoryState
	defaults   Defaults
	cancel     context.CancelFunc
	done       chan struct{}
	last       *Report
}

// NewManager builds a manager around orch. publisher may be nil.
func NewManager(orch *Orchestrator, publisher store.Notifier, defaults Defaults) *Manager {
	if defaults.ScanMode == "" {
		defaults.ScanMode = stream.ScanQuick
	}
	if defaults.ValidationMode == "" {
		defaults.ValidationMode = stream.ValidationLenient
	}
	return &Manager{
		orch:       orch,
		tracker:    NewTracker(),
		publisher:  publisher,
		logger:     log.WithComponent("scan"),
		status:     Status{State: StateIdle},
		categories: make(map[string]CategoryState),
		defaults:   defaults,
	}
}

// SetDefaults replaces the default modes, e.g. after a config reload.
func (m *Manager) SetDefaults(d Defaults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ScanMode != "" {
		m.defaults.ScanMode = d.ScanMode
	}
	if d.ValidationMode != "" {
		m.defaults.ValidationMode = d.ValidationMode
	}
}

// Defaults returns the current default modes.
func (m *Manager) Defaults() Defaults {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults
}

func (m *Manager) withDefaults(req Request) Request {
	d := m.Defaults()
	if req.ScanMode == "" {
		req.ScanMode = d.ScanMode
	}
	if req.ValidationMode == "" {
		req.ValidationMode = d.ValidationMode
	}
	return req
}

// Start launches req in the background and returns its scan id.
func (m *Manager) Start(req Request) (string, error) {
	if !m.isScanning.CompareAndSwap(false, true) {
		return "", ErrScanActive
	}
	req = m.withDefaults(req)
	scanID := uuid.NewString()
	ctx, cancel := context.WithCancel(log.ContextWithScanID(context.Background(), scanID))
	done := make(chan struct{})
	m.begin(scanID, req, cancel, done)

	go func() {
		defer close(done)
		defer cancel()
		m.finish(m.orch.Run(ctx, req, m.tracker))
	}()
	return scanID, nil
}

// Run executes req synchronously on ctx.
func (m *Manager) Run(ctx context.Context, req Request) (Report, error) {
	if !m.isScanning.CompareAndSwap(false, true) {
		return Report{}, ErrScanActive
	}
	req = m.withDefaults(req)
	scanID := uuid.NewString()
	ctx, cancel := context.WithCancel(log.ContextWithScanID(ctx, scanID))
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	m.begin(scanID, req, cancel, done)

	report := m.orch.Run(ctx, req, m.tracker)
	m.finish(report)
	return report, nil
}

func (m *Manager) begin(scanID string, req Request, cancel context.CancelFunc, done chan struct{}) {
	now := time.Now()
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.status = Status{
		ScanID:         scanID,
		State:          StateRunning,
		Category:       req.Category,
		ScanMode:       req.ScanMode,
		ValidationMode: req.ValidationMode,
		StartedAt:      now.Unix(),
	}
	m.categories[req.Category] = CategoryState{Category: req.Category, State: CategoryValidating, UpdatedAt: now}
	m.mu.Unlock()

	metrics.SetScanActive(true)
	m.publish(m.Status())
}

func (m *Manager) finish(report Report) {
	now := time.Now()
	m.mu.Lock()
	m.status.FinishedAt = now.Unix()
	m.status.State = StateCompleted
	outcome := "completed"
	if report.Cancelled {
		m.status.State = StateCancelled
		outcome = "cancelled"
	}
	m.categories[report.Category] = CategoryState{
		Category:  report.Category,
		State:     CategoryCompleted,
		Cancelled: report.Cancelled,
		UpdatedAt: now,
	}
	m.cancel = nil
	m.last = &report
	m.mu.Unlock()

	metrics.SetScanActive(false)
	metrics.RecordScanOutcome(outcome)
	m.publish(m.Status())
	m.isScanning.Store(false)
}

// Cancel stops the active scan. No new batch starts and in-flight checks are
// aborted; their entries return to unknown.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	cancel := m.cancel
	category := m.status.Category
	if cancel != nil {
		// reported completed right away, the run drains in the background
		m.categories[category] = CategoryState{Category: category, State: CategoryCompleted, Cancelled: true, UpdatedAt: time.Now()}
	}
	m.mu.Unlock()
	if cancel == nil {
		return ErrNoActiveScan
	}
	cancel()
	m.logger.Info().
		Str(log.FieldEvent, "scan.cancel").
		Str(log.FieldCategory, category).
		Msg("scan cancelled")
	return nil
}

// Wait blocks until the active scan, if any, has finished or ctx ends.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any active scan and waits for it to drain.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.Cancel(); err != nil && !errors.Is(err, ErrNoActiveScan) {
		return err
	}
	return m.Wait(ctx)
}

// Active reports whether a scan is running.
func (m *Manager) Active() bool { return m.isScanning.Load() }

// Status returns the current scan status with live progress.
func (m *Manager) Status() Status {
	m.mu.RLock()
	st := m.status
	m.mu.RUnlock()
	if st.State != StateIdle {
		st.Progress = m.tracker.Snapshot()
		st.Percent = st.Progress.Percent()
	}
	return st
}

// LastReport returns the report of the last finished scan.
func (m *Manager) LastReport() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

// Categories lists every category seen, sorted by name.
func (m *Manager) Categories() []CategoryState {
	m.mu.RLock()
	out := make([]CategoryState, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ValidateOne validates a single stream outside any batch.
func (m *Manager) ValidateOne(ctx context.Context, ref stream.Ref, mode stream.ScanMode, vmode stream.ValidationMode) stream.Result {
	d := m.Defaults()
	if mode == "" {
		mode = d.ScanMode
	}
	if vmode == "" {
		vmode = d.ValidationMode
	}
	return m.orch.ValidateOne(ctx, ref, mode, vmode)
}

func (m *Manager) publish(st Status) {
	if m.publisher == nil {
		return
	}
	m.publisher.TryPublish(bus.TopicEvents, bus.NewEvent(bus.EventScan, st))
}
