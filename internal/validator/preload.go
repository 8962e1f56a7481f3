// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/streamcheck/internal/core/useragent"
	"github.com/ManuGH/streamcheck/internal/platform/httpx"
	"github.com/ManuGH/streamcheck/internal/relay"
	"github.com/ManuGH/streamcheck/internal/sniff"
)

// DefaultPreloadTimeout bounds one preload attempt.
const DefaultPreloadTimeout = 15 * time.Second

// ErrNoMetadata means the preload fetch succeeded but carried no recognisable
// media payload.
var ErrNoMetadata = errors.New("no media metadata in preload response")

// Preloader primes a stream so later playback starts immediately.
type Preloader interface {
	Preload(ctx context.Context, rawURL string) error
}

// RelayPreloader loads the head of a stream through the relay and waits for
// a media signature, the server-side stand-in for a player's metadata event.
type RelayPreloader struct {
	relayBase string
	client    *http.Client
	timeout   time.Duration
}

// NewRelayPreloader builds a preloader. An empty relayBase fetches the
// stream directly.
func NewRelayPreloader(relayBase string, timeout time.Duration, client *http.Client) *RelayPreloader {
	if timeout <= 0 {
		timeout = DefaultPreloadTimeout
	}
	if client == nil {
		client = httpx.NewStreamingClient(timeout, nil)
	}
	return &RelayPreloader{relayBase: relayBase, client: client, timeout: timeout}
}

// Preload implements Preloader.
func (p *RelayPreloader) Preload(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := rawURL
	if p.relayBase != "" {
		target = relay.URL(p.relayBase, rawURL, relay.ProfileDefault)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build preload request: %w", err)
	}
	req.Header.Set("User-Agent", useragent.Browser)
	req.Header.Set("Range", "bytes=0-")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("preload fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("preload fetch: status %d", resp.StatusCode)
	}

	prefix, err := sniff.ReadPrefix(resp.Body)
	if err != nil && len(prefix) == 0 {
		return fmt.Errorf("preload read: %w", err)
	}
	if sniff.Detect(prefix).Known() {
		return nil
	}
	if len(prefix) > 0 && sniff.IsStreamingType(resp.Header.Get("Content-Type")) {
		return nil
	}
	return ErrNoMetadata
}
