// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validator runs the authoritative per-URL check: the remote
// validation service when reachable, the local probe otherwise, followed by
// a preload of every working stream.
package validator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/telemetry"
)

// Result sources.
const (
	SourceService = "service"
	SourceLocal   = "local"
)

// Prober is the local quick check.
type Prober interface {
	Check(ctx context.Context, rawURL string) stream.Result
}

// Validator is the deep validator.
type Validator struct {
	service   *ServiceClient
	prober    Prober
	preloader Preloader
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// New builds a Validator. service may be nil; preloader may be nil, in which
// case nothing is ever preloaded.
func New(service *ServiceClient, prober Prober, preloader Preloader) *Validator {
	return &Validator{
		service:   service,
		prober:    prober,
		preloader: preloader,
		logger:    log.WithComponent("validator"),
		tracer:    telemetry.Tracer("streamcheck/validator"),
	}
}

// Service returns the service client, nil when none is configured.
func (v *Validator) Service() *ServiceClient { return v.service }

// Probe runs the local quick check only.
func (v *Validator) Probe(ctx context.Context, rawURL string) stream.Result {
	return v.prober.Check(ctx, rawURL)
}

// Check returns the authoritative verdict for rawURL without preloading.
func (v *Validator) Check(ctx context.Context, rawURL string) stream.Result {
	res, _ := v.check(ctx, rawURL)
	return res
}

func (v *Validator) check(ctx context.Context, rawURL string) (stream.Result, string) {
	res, err := v.service.ValidateStream(ctx, rawURL)
	if err == nil {
		metrics.RecordServiceCheck("ok")
		return res, SourceService
	}
	if v.service != nil {
		metrics.RecordServiceCheck("unavailable")
		if ctx.Err() == nil {
			logger := log.WithContext(ctx, v.logger)
			logger.Warn().Err(err).
				Str(log.FieldEvent, "validator.service_fallback").
				Str(log.FieldURL, log.RedactURL(rawURL)).
				Msg("validation service unavailable, probing locally")
		}
	}
	return v.prober.Check(ctx, rawURL), SourceLocal
}

// Validate checks rawURL and preloads it when working. The result always has
// Preloaded defined; a failed preload never downgrades the status.
func (v *Validator) Validate(ctx context.Context, rawURL string) stream.Result {
	ctx, span := v.tracer.Start(ctx, "validator.validate",
		trace.WithAttributes(attribute.String(telemetry.StreamURLKey, log.RedactURL(rawURL))))
	defer span.End()

	res, source := v.check(ctx, rawURL)
	metrics.RecordValidate(source, string(res.Status))
	span.SetAttributes(attribute.String("validator.source", source))

	res = v.Preload(ctx, res)
	span.SetAttributes(telemetry.StreamAttributes(log.RedactURL(rawURL), string(res.Status), string(res.Cause), res.ContentType)...)
	if !res.IsWorking() {
		span.SetStatus(codes.Error, string(res.Cause))
	}
	return res
}

// FromService turns a batch verdict from the service into a result.
func FromService(rawURL string, status stream.Status) (stream.Result, bool) {
	switch status {
	case stream.StatusWorking:
		return stream.Working(rawURL, "", 0), true
	case stream.StatusBroken:
		return stream.Broken(rawURL, stream.CauseNotMedia), true
	}
	return stream.Result{}, false
}

// CheckBatch asks the service for verdicts on a whole batch. Any error means
// the caller should validate each URL individually.
func (v *Validator) CheckBatch(ctx context.Context, urls []string) (map[string]stream.Status, error) {
	statuses, err := v.service.ValidateStreams(ctx, urls)
	if err != nil {
		if v.service != nil {
			metrics.RecordServiceCheck("batch_unavailable")
		}
		return nil, err
	}
	metrics.RecordServiceCheck("batch_ok")
	return statuses, nil
}

// Preload primes res when it is working and returns it with Preloaded set.
func (v *Validator) Preload(ctx context.Context, res stream.Result) stream.Result {
	res.Preloaded = false
	if !res.IsWorking() || v.preloader == nil {
		return res
	}

	ctx, span := v.tracer.Start(ctx, "validator.preload",
		trace.WithAttributes(attribute.String(telemetry.StreamURLKey, log.RedactURL(res.URL))))
	defer span.End()

	err := v.preloader.Preload(ctx, res.URL)
	res.Preloaded = err == nil
	metrics.RecordPreload(res.Preloaded)
	if err != nil {
		span.RecordError(err)
		lvl := zerolog.DebugLevel
		if errors.Is(err, context.DeadlineExceeded) {
			lvl = zerolog.InfoLevel
		}
		logger := log.WithContext(ctx, v.logger)
		logger.WithLevel(lvl).Err(err).
			Str(log.FieldEvent, "validator.preload_failed").
			Str(log.FieldURL, log.RedactURL(res.URL)).
			Msg("preload failed, stream stays working")
	}
	return res
}
