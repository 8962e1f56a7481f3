// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scan drives validation across a stream list in paced, fully
// parallel batches and owns the single active scan of the process.
package scan

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/policy"
	"github.com/ManuGH/streamcheck/internal/store"
	"github.com/ManuGH/streamcheck/internal/telemetry"
	"github.com/ManuGH/streamcheck/internal/validator"
)

// Validator is what the orchestrator needs from the validation layer.
type Validator interface {
	Probe(ctx context.Context, rawURL string) stream.Result
	Validate(ctx context.Context, rawURL string) stream.Result
	CheckBatch(ctx context.Context, urls []string) (map[string]stream.Status, error)
	Preload(ctx context.Context, res stream.Result) stream.Result
}

// Config sizes and paces batches per scan mode.
type Config struct {
	QuickBatchSize   int
	PreloadBatchSize int
	QuickDelay       time.Duration
	PreloadDelay     time.Duration
}

// DefaultConfig returns the stock batch sizes and pacing.
func DefaultConfig() Config {
	return Config{
		QuickBatchSize:   5,
		PreloadBatchSize: 3,
		QuickDelay:       500 * time.Millisecond,
		PreloadDelay:     time.Second,
	}
}

func (c Config) batchSize(m stream.ScanMode) int {
	if m == stream.ScanPreload {
		return c.PreloadBatchSize
	}
	return c.QuickBatchSize
}

func (c Config) delay(m stream.ScanMode) time.Duration {
	if m == stream.ScanPreload {
		return c.PreloadDelay
	}
	return c.QuickDelay
}

// Request describes one scan run.
type Request struct {
	Category       string                `json:"category"`
	Streams        []stream.Ref          `json:"streams"`
	ScanMode       stream.ScanMode       `json:"scanMode"`
	ValidationMode stream.ValidationMode `json:"validationMode"`
}

// Report summarizes a finished run. Results follow input order after
// duplicate collapse; entries aborted by cancellation are unknown.
type Report struct {
	ScanID         string                `json:"scanId"`
	Category       string                `json:"category"`
	ScanMode       stream.ScanMode       `json:"scanMode"`
	ValidationMode stream.ValidationMode `json:"validationMode"`
	Results        []stream.Result       `json:"results"`
	Batches        int                   `json:"batches"`
	Validated      int                   `json:"validated"`
	Cancelled      bool                  `json:"cancelled"`
	StartedAt      time.Time             `json:"startedAt"`
	FinishedAt     time.Time             `json:"finishedAt"`
}

// Counts returns how many results ended in each status.
func (r Report) Counts() map[stream.Status]int {
	return lo.CountValuesBy(r.Results, func(res stream.Result) stream.Status { return res.Status })
}

// Orchestrator runs batches. It holds no per-run state, so one instance can
// serve sequential runs.
type Orchestrator struct {
	validator Validator
	store     *store.Store
	publisher store.Notifier
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sends progress events to p.
func WithPublisher(p store.Notifier) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithSleep replaces the inter-batch pause.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// NewOrchestrator builds an orchestrator writing to st.
func NewOrchestrator(v Validator, st *store.Store, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.QuickBatchSize <= 0 {
		cfg.QuickBatchSize = def.QuickBatchSize
	}
	if cfg.PreloadBatchSize <= 0 {
		cfg.PreloadBatchSize = def.PreloadBatchSize
	}
	if cfg.QuickDelay < 0 {
		cfg.QuickDelay = 0
	}
	if cfg.PreloadDelay < 0 {
		cfg.PreloadDelay = 0
	}
	o := &Orchestrator{
		validator: v,
		store:     st,
		cfg:       cfg,
		sleep:     sleepCtx,
		now:       time.Now,
		logger:    log.WithComponent("scan"),
		tracer:    telemetry.Tracer("streamcheck/scan"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run validates every stream of req. It always returns a report; the
// report is marked cancelled when ctx ended before all batches ran.
func (o *Orchestrator) Run(ctx context.Context, req Request, tracker *Tracker) Report {
	refs := stream.Unique(req.Streams)
	size := o.cfg.batchSize(req.ScanMode)
	delay := o.cfg.delay(req.ScanMode)
	scanID := log.ScanIDFromContext(ctx)
	logger := log.WithContext(ctx, o.logger)

	if tracker == nil {
		tracker = NewTracker()
	}
	tracker.Reset(len(refs), req.Category)
	o.publishProgress(scanID, tracker.Snapshot())

	report := Report{
		ScanID:         scanID,
		Category:       req.Category,
		ScanMode:       req.ScanMode,
		ValidationMode: req.ValidationMode,
		Results:        make([]stream.Result, len(refs)),
		StartedAt:      o.now(),
	}

	logger.Info().
		Str(log.FieldEvent, "scan.start").
		Str(log.FieldCategory, req.Category).
		Str(log.FieldScanMode, string(req.ScanMode)).
		Str(log.FieldValidation, string(req.ValidationMode)).
		Int("streams", len(refs)).
		Int("batch_size", size).
		Msg("scan started")

	offset := 0
	aborted := false
	for i, batch := range lo.Chunk(refs, size) {
		if i > 0 && o.sleep(ctx, delay) != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if o.runBatch(ctx, req, i, batch, report.Results[offset:offset+len(batch)], tracker, scanID) {
			aborted = true
		}
		report.Batches++
		offset += len(batch)
		metrics.IncScanBatch(string(req.ScanMode))
	}
	for j := offset; j < len(refs); j++ {
		report.Results[j] = stream.Result{URL: refs[j].URL, Status: stream.StatusUnknown}
	}
	report.Cancelled = aborted || offset < len(refs)

	report.Validated = tracker.Snapshot().ValidatedCount
	report.FinishedAt = o.now()

	logger.Info().
		Str(log.FieldEvent, "scan.done").
		Str(log.FieldCategory, req.Category).
		Int("batches", report.Batches).
		Int("validated", report.Validated).
		Bool("cancelled", report.Cancelled).
		Int64(log.FieldDurationMS, report.FinishedAt.Sub(report.StartedAt).Milliseconds()).
		Msg("scan finished")
	return report
}

// runBatch validates one batch fully in parallel and returns once every
// member has resolved. It reports whether cancellation aborted any member.
func (o *Orchestrator) runBatch(ctx context.Context, req Request, index int, batch []stream.Ref, out []stream.Result, tracker *Tracker, scanID string) bool {
	ctx, span := o.tracer.Start(ctx, "scan.batch",
		trace.WithAttributes(telemetry.BatchAttributes(string(req.ScanMode), string(req.ValidationMode), index, len(batch))...))
	defer span.End()

	for _, ref := range batch {
		o.store.Set(ref.URL, stream.StatusChecking)
	}

	var verdicts map[string]stream.Status
	var batchErr error
	if req.ScanMode == stream.ScanPreload {
		verdicts, batchErr = o.validator.CheckBatch(ctx, stream.URLs(batch))
		if batchErr != nil && ctx.Err() == nil {
			logger := log.WithContext(ctx, o.logger)
			logger.Debug().Err(batchErr).
				Str(log.FieldEvent, "scan.batch_fallback").
				Int("batch", index).
				Msg("batch verdict unavailable, validating individually")
		}
	}

	var aborted atomic.Bool
	var g errgroup.Group
	for j, ref := range batch {
		g.Go(func() error {
			res := o.validateItem(ctx, req.ScanMode, ref, verdicts, batchErr)
			if ctx.Err() != nil {
				aborted.Store(true)
				// aborted by cancellation: leave no stale checking entry behind
				o.store.Clear(ref.URL)
				out[j] = stream.Result{URL: ref.URL, Status: stream.StatusUnknown}
				return nil
			}
			eff := policy.Apply(res, req.ValidationMode)
			o.store.Set(ref.URL, eff.Status)
			o.store.SetPreloaded(ref.URL, eff.Preloaded)
			out[j] = eff
			o.publishProgress(scanID, tracker.Increment())

			logger := log.WithContext(ctx, o.logger)
			logger.Debug().
				Str(log.FieldEvent, "scan.item_done").
				Str(log.FieldStreamName, ref.Name).
				Str(log.FieldURL, log.RedactURL(ref.URL)).
				Str(log.FieldStatus, string(eff.Status)).
				Str(log.FieldCause, string(res.Cause)).
				Bool("preloaded", eff.Preloaded).
				Msg("stream validated")
			return nil
		})
	}
	_ = g.Wait()
	return aborted.Load()
}

// validateItem never panics and never returns a partial result.
func (o *Orchestrator) validateItem(ctx context.Context, mode stream.ScanMode, ref stream.Ref, verdicts map[string]stream.Status, batchErr error) (res stream.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithContext(ctx, o.logger)
			logger.Error().
				Str(log.FieldEvent, "scan.item_panic").
				Str(log.FieldURL, log.RedactURL(ref.URL)).
				Str("panic", fmt.Sprint(r)).
				Msg("validation panicked")
			res = stream.Broken(ref.URL, stream.CauseAborted)
		}
	}()

	if mode != stream.ScanPreload {
		return o.validator.Probe(ctx, ref.URL)
	}
	if batchErr == nil {
		if st, ok := verdicts[ref.URL]; ok {
			if r, ok := validator.FromService(ref.URL, st); ok {
				return o.validator.Preload(ctx, r)
			}
		}
	}
	return o.validator.Validate(ctx, ref.URL)
}

// ValidateOne runs the single-stream path: checking is shown while the
// check runs, the result goes through the mode policy, then to the store.
func (o *Orchestrator) ValidateOne(ctx context.Context, ref stream.Ref, mode stream.ScanMode, vmode stream.ValidationMode) stream.Result {
	o.store.Set(ref.URL, stream.StatusChecking)
	res := o.validateItem(ctx, mode, ref, nil, validator.ErrServiceUnavailable)
	if ctx.Err() != nil {
		o.store.Clear(ref.URL)
		return stream.Result{URL: ref.URL, Status: stream.StatusUnknown}
	}
	eff := policy.Apply(res, vmode)
	o.store.Set(ref.URL, eff.Status)
	o.store.SetPreloaded(ref.URL, eff.Preloaded)
	return eff
}

func (o *Orchestrator) publishProgress(scanID string, p stream.Progress) {
	if o.publisher == nil {
		return
	}
	o.publisher.TryPublish(bus.TopicEvents, bus.NewEvent(bus.EventProgress, ProgressEvent{
		Progress: p,
		ScanID:   scanID,
		Percent:  p.Percent(),
	}))
}
