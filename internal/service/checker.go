// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/streamcheck/internal/core/useragent"
	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	"github.com/ManuGH/streamcheck/internal/probe"
	"github.com/ManuGH/streamcheck/internal/sniff"
)

// rangeHeader asks for the first 64KiB, enough to sniff any container.
const rangeHeader = "bytes=0-65535"

// DeepChecker fetches the head of a stream and confirms it with media
// sniffing. It is stricter than the quick probe: a 200 page of HTML is
// not a stream.
type DeepChecker struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	now       func() time.Time
}

// NewDeepChecker returns a checker bounded by timeout per URL. A nil client
// selects an instrumented default.
func NewDeepChecker(timeout time.Duration, client *http.Client) *DeepChecker {
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}
	if client == nil {
		client = httpx.NewClient(timeout)
	}
	return &DeepChecker{client: client, timeout: timeout, userAgent: useragent.Browser, now: time.Now}
}

// Check validates rawURL. Failures are folded into a broken result.
func (c *DeepChecker) Check(ctx context.Context, rawURL string) stream.Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return stream.Broken(rawURL, stream.CauseRejected)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Range", rangeHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return stream.Broken(rawURL, stream.CauseTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return stream.Broken(rawURL, stream.CauseTransport)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return stream.Broken(rawURL, stream.CauseNotMedia)
	}

	contentType := resp.Header.Get("Content-Type")
	prefix, err := sniff.ReadPrefix(resp.Body)
	if err != nil && len(prefix) == 0 {
		return stream.Broken(rawURL, stream.CauseTransport)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	elapsed := c.now().Sub(start).Milliseconds()

	if format := sniff.Detect(prefix); format.Known() {
		if contentType == "" || !sniff.IsStreamingType(contentType) {
			contentType = format.ContentType()
		}
		return stream.Working(rawURL, contentType, elapsed)
	}
	if sniff.IsStreamingType(contentType) || (contentType == "" && probe.HasMediaSuffix(rawURL)) {
		return stream.Working(rawURL, contentType, elapsed)
	}
	return stream.Broken(rawURL, stream.CauseNotMedia)
}
