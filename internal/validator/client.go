// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	"github.com/ManuGH/streamcheck/internal/resilience"
	"github.com/ManuGH/streamcheck/internal/service"
)

// ErrServiceUnavailable means the authoritative service gave no usable
// verdict. Callers fall back to local checks.
var ErrServiceUnavailable = errors.New("validation service unavailable")

// Default call timeouts.
const (
	DefaultServiceTimeout      = 10 * time.Second
	DefaultBatchServiceTimeout = 30 * time.Second
)

// ServiceClient talks to the authoritative validation service.
type ServiceClient struct {
	baseURL      string
	client       *http.Client
	breaker      *resilience.CircuitBreaker
	timeout      time.Duration
	batchTimeout time.Duration
}

// ClientConfig configures a ServiceClient.
type ClientConfig struct {
	BaseURL          string
	Timeout          time.Duration
	BatchTimeout     time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
	HTTPClient       *http.Client
}

// NewServiceClient returns a client, or nil when no base URL is configured.
// A nil *ServiceClient is valid and always reports the service unavailable.
func NewServiceClient(cfg ClientConfig) *ServiceClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultServiceTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchServiceTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		// per-call deadlines come from the context
		client = httpx.NewStreamingClient(cfg.BatchTimeout, nil)
	}
	return &ServiceClient{
		baseURL:      base,
		client:       client,
		breaker:      resilience.NewCircuitBreaker("validation-service", cfg.BreakerThreshold, cfg.BreakerReset),
		timeout:      cfg.Timeout,
		batchTimeout: cfg.BatchTimeout,
	}
}

// Available reports whether a service is configured and its breaker is not open.
func (c *ServiceClient) Available() bool {
	return c != nil && c.breaker.State() != resilience.StateOpen
}

// BreakerState returns the circuit breaker state, "disabled" without a service.
func (c *ServiceClient) BreakerState() string {
	if c == nil {
		return "disabled"
	}
	return string(c.breaker.State())
}

// ValidateStream asks the service about one URL.
func (c *ServiceClient) ValidateStream(ctx context.Context, rawURL string) (stream.Result, error) {
	if c == nil {
		return stream.Result{}, ErrServiceUnavailable
	}
	var resp service.ValidateStreamResponse
	if err := c.post(ctx, c.timeout, service.PathValidateStream, service.ValidateStreamRequest{URL: rawURL}, &resp); err != nil {
		return stream.Result{}, err
	}
	if !resp.Success {
		return stream.Broken(rawURL, stream.CauseNotMedia), nil
	}
	switch resp.Status {
	case stream.StatusWorking:
		return stream.Working(rawURL, resp.ContentType, resp.ResponseTime), nil
	case stream.StatusBroken:
		return stream.Broken(rawURL, stream.CauseNotMedia), nil
	}
	return stream.Result{}, fmt.Errorf("%w: unexpected status %q", ErrServiceUnavailable, resp.Status)
}

// ValidateStreams asks the service about many URLs in one call.
func (c *ServiceClient) ValidateStreams(ctx context.Context, urls []string) (map[string]stream.Status, error) {
	if c == nil {
		return nil, ErrServiceUnavailable
	}
	var resp service.ValidateStreamsResponse
	if err := c.post(ctx, c.batchTimeout, service.PathValidateStreams, service.ValidateStreamsRequest{URLs: urls}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: batch rejected: %s", ErrServiceUnavailable, resp.Error)
	}
	return resp.Results, nil
}

func (c *ServiceClient) post(ctx context.Context, timeout time.Duration, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	// The deadline lives inside the guarded call so a slow service counts
	// against the breaker while caller cancellation does not.
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			return fmt.Errorf("service returned %d", resp.StatusCode)
		}
		return json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return nil
}
