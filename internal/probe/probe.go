// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe implements the quick reachability check used by quick scans
// and as the local fallback of the deep validator.
package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/streamcheck/internal/core/useragent"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/metrics"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	"github.com/ManuGH/streamcheck/internal/telemetry"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// minContentLength is the declared body size above which a response is
// assumed to carry media.
const minContentLength = 50

var (
	mediaTypePrefixes = []string{"video/", "audio/", "application/", "text/"}
	mediaSuffixes     = []string{".m3u8", ".m3u", ".mp4", ".ts", ".mpd"}
)

// Prober issues header-only requests and classifies the response.
type Prober struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the outbound client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) {
		if c != nil {
			p.client = c
		}
	}
}

// WithUserAgent overrides the browser identity sent upstream.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// New returns a Prober with the given per-request timeout.
func New(timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Prober{
		timeout:   timeout,
		userAgent: useragent.Browser,
		logger:    log.WithComponent("probe"),
		tracer:    telemetry.Tracer("streamcheck/probe"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = httpx.NewClient(timeout)
	}
	return p
}

// Check probes rawURL. It never returns an error: every failure is folded
// into a broken result with a cause.
func (p *Prober) Check(ctx context.Context, rawURL string) stream.Result {
	ctx, span := p.tracer.Start(ctx, "probe.check",
		trace.WithAttributes(attribute.String(telemetry.StreamURLKey, log.RedactURL(rawURL))))
	defer span.End()

	start := p.now()
	res := p.check(ctx, rawURL, start)
	elapsed := p.now().Sub(start)

	span.SetAttributes(telemetry.StreamAttributes(log.RedactURL(rawURL), string(res.Status), string(res.Cause), res.ContentType)...)
	if !res.IsWorking() {
		span.SetStatus(codes.Error, string(res.Cause))
	}
	metrics.RecordProbe(string(res.Status), string(res.Cause), elapsed)

	logger := log.WithContext(ctx, p.logger)
	logger.Debug().
		Str(log.FieldEvent, "probe.done").
		Str(log.FieldURL, log.RedactURL(rawURL)).
		Str(log.FieldStatus, string(res.Status)).
		Str(log.FieldCause, string(res.Cause)).
		Int64(log.FieldDurationMS, elapsed.Milliseconds()).
		Msg("probe finished")
	return res
}

func (p *Prober) check(ctx context.Context, rawURL string, start time.Time) stream.Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return stream.Broken(rawURL, stream.CauseRejected)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.logger.Debug().Str(log.FieldURL, log.RedactURL(rawURL)).Msg("probe cancelled")
		}
		return stream.Broken(rawURL, stream.CauseTransport)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return stream.Broken(rawURL, stream.CauseTransport)
	}

	contentType := resp.Header.Get("Content-Type")
	if !Classify(rawURL, resp.StatusCode, contentType, resp.ContentLength) {
		return stream.Broken(rawURL, stream.CauseNotMedia)
	}
	return stream.Working(rawURL, contentType, p.now().Sub(start).Milliseconds())
}

// Classify applies the permissive media heuristic to one response. Any of
// these is enough: status 200 or 206, a media-ish content type, a declared
// length above a small threshold, or a known media suffix on the URL path.
func Classify(rawURL string, status int, contentType string, contentLength int64) bool {
	if status == http.StatusOK || status == http.StatusPartialContent {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range mediaTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	if contentLength > minContentLength {
		return true
	}
	return HasMediaSuffix(rawURL)
}

// HasMediaSuffix reports whether the URL path ends in a known media
// container or manifest extension. Query strings are ignored.
func HasMediaSuffix(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, suffix := range mediaSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
