// SPDX-License-Identifier: MIT

// Package ratelimit paces outbound checks so a scan never floods one host
// or the network as a whole.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/streamcheck/internal/metrics"
)

// Config holds rate limiting configuration
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int        // max burst size

	// Per-host limits
	PerHostRate  rate.Limit
	PerHostBurst int

	// Host limiters idle for this long are dropped
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		GlobalRate:   20,
		GlobalBurst:  40,
		PerHostRate:  5,
		PerHostBurst: 10,
		IdleTimeout:  5 * time.Minute,
	}
}

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter paces outbound requests globally and per upstream host.
type Limiter struct {
	name   string
	config Config
	global *rate.Limiter

	mu          sync.Mutex
	perHost     map[string]*hostLimiter
	lastCleanup time.Time
	now         func() time.Time
}

// New creates a limiter. name labels its metrics.
func New(name string, config Config) *Limiter {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultConfig().IdleTimeout
	}
	return &Limiter{
		name:        name,
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perHost:     make(map[string]*hostLimiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Wait blocks until a request to rawURL may be issued or ctx is done.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if err := l.global.Wait(ctx); err != nil {
		metrics.RecordRateLimit(l.name, "cancelled")
		return err
	}
	if err := l.hostLimiter(HostOf(rawURL)).Wait(ctx); err != nil {
		metrics.RecordRateLimit(l.name, "cancelled")
		return err
	}
	metrics.RecordRateLimit(l.name, "allowed")
	return nil
}

// Allow reports whether a request to rawURL may be issued right now.
func (l *Limiter) Allow(rawURL string) bool {
	if !l.global.Allow() {
		metrics.RecordRateLimit(l.name, "rejected")
		return false
	}
	if !l.hostLimiter(HostOf(rawURL)).Allow() {
		metrics.RecordRateLimit(l.name, "rejected")
		return false
	}
	metrics.RecordRateLimit(l.name, "allowed")
	return true
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	h, ok := l.perHost[host]
	if !ok {
		h = &hostLimiter{limiter: rate.NewLimiter(l.config.PerHostRate, l.config.PerHostBurst)}
		l.perHost[host] = h
	}
	h.lastSeen = now
	return h.limiter
}

// cleanupLocked drops host limiters that have been idle for IdleTimeout.
func (l *Limiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.config.IdleTimeout {
		return
	}
	for host, h := range l.perHost {
		if now.Sub(h.lastSeen) >= l.config.IdleTimeout {
			delete(l.perHost, host)
		}
	}
	l.lastCleanup = now
}

// Hosts returns the number of tracked hosts.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perHost)
}

// HostOf returns the lower-cased host of rawURL, or rawURL itself when it
// cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
