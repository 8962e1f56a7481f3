// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package service is the authoritative validation service. It checks
// streams server side, caches verdicts and coalesces duplicate work.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/streamcheck/internal/cache"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/ratelimit"
	"github.com/ManuGH/streamcheck/internal/telemetry"
)

// Checker validates one URL.
type Checker interface {
	Check(ctx context.Context, rawURL string) stream.Result
}

// Config tunes the service.
type Config struct {
	CacheTTL    time.Duration
	Concurrency int
	MaxBatch    int
	// CheckTimeout bounds one shared check. It outlives the caller that
	// started it so coalesced waiters still get a verdict.
	CheckTimeout time.Duration
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{CacheTTL: 2 * time.Minute, Concurrency: 8, MaxBatch: 500, CheckTimeout: 30 * time.Second}
}

// Service validates streams on behalf of remote callers.
type Service struct {
	checker Checker
	cache   cache.Cache
	limiter *ratelimit.Limiter
	group   singleflight.Group
	cfg     Config
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New builds a Service. A nil cache disables caching; a nil limiter disables pacing.
func New(checker Checker, c cache.Cache, limiter *ratelimit.Limiter, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Service{
		checker: checker,
		cache:   c,
		limiter: limiter,
		cfg:     cfg,
		logger:  log.WithComponent("service"),
		tracer:  telemetry.Tracer("streamcheck/service"),
	}
}

// Validate returns the verdict for rawURL, from cache when fresh.
// Concurrent calls for the same URL share one outbound check.
func (s *Service) Validate(ctx context.Context, rawURL string) stream.Result {
	ctx, span := s.tracer.Start(ctx, "service.validate",
		trace.WithAttributes(attribute.String(telemetry.StreamURLKey, log.RedactURL(rawURL))))
	defer span.End()

	if r, ok := s.cache.Get(rawURL); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return r
	}

	ch := s.group.DoChan(rawURL, func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CheckTimeout)
		defer cancel()
		return s.check(checkCtx, rawURL), nil
	})
	var res stream.Result
	select {
	case r := <-ch:
		res = r.Val.(stream.Result)
	case <-ctx.Done():
		return stream.Broken(rawURL, stream.CauseTransport)
	}
	span.SetAttributes(telemetry.StreamAttributes(log.RedactURL(rawURL), string(res.Status), string(res.Cause), res.ContentType)...)
	return res
}

func (s *Service) check(ctx context.Context, rawURL string) stream.Result {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rawURL); err != nil {
			return stream.Broken(rawURL, stream.CauseRejected)
		}
	}

	res := s.checker.Check(ctx, rawURL)
	metrics.RecordServiceCheck(string(res.Status))

	// Transient failures are not cached so the next scan retries them.
	if ctx.Err() == nil && res.Cause != stream.CauseTransport && res.Cause != stream.CauseRejected {
		s.cache.Set(rawURL, res, s.cfg.CacheTTL)
	}

	logger := log.WithContext(ctx, s.logger)
	logger.Debug().
		Str(log.FieldEvent, "service.checked").
		Str(log.FieldURL, log.RedactURL(rawURL)).
		Str(log.FieldStatus, string(res.Status)).
		Str(log.FieldCause, string(res.Cause)).
		Msg("stream checked")
	return res
}

// ValidateMany checks every distinct URL with bounded concurrency and
// returns a status per URL.
func (s *Service) ValidateMany(ctx context.Context, urls []string) map[string]stream.Status {
	distinct := lo.Uniq(lo.Filter(urls, func(u string, _ int) bool { return u != "" }))
	results := make(map[string]stream.Status, len(distinct))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, u := range distinct {
		g.Go(func() error {
			res := s.Validate(ctx, u)
			mu.Lock()
			results[u] = res.Status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// MaxBatch is the largest accepted batch.
func (s *Service) MaxBatch() int { return s.cfg.MaxBatch }

// CacheStats exposes the result cache statistics.
func (s *Service) CacheStats() cache.CacheStats { return s.cache.Stats() }
