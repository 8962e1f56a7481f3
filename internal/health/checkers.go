// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// PingChecker reports a dependency reachable through a ping function.
// Required dependencies are unhealthy when the ping fails; optional ones
// only degrade.
type PingChecker struct {
	name     string
	required bool
	ping     func(ctx context.Context) error
}

// NewPingChecker creates a ping based checker.
func NewPingChecker(name string, required bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, required: required, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		status := StatusDegraded
		if c.required {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// BreakerChecker reports the state of a circuit breaker guarding an
// optional dependency. An open breaker degrades the process because callers
// fall back to local validation.
type BreakerChecker struct {
	name  string
	state func() string
}

// NewBreakerChecker creates a checker over a breaker state accessor.
func NewBreakerChecker(name string, state func() string) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	switch s := c.state(); s {
	case "closed":
		return CheckResult{Status: StatusHealthy, Message: "breaker closed"}
	case "disabled":
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	default:
		return CheckResult{Status: StatusDegraded, Message: "breaker " + s + ", using local validation"}
	}
}

// ScanChecker reports the scan manager. A scan is never a health problem,
// it is surfaced for operators.
type ScanChecker struct {
	active func() bool
}

// NewScanChecker creates a checker over the scan manager's activity flag.
func NewScanChecker(active func() bool) *ScanChecker {
	return &ScanChecker{active: active}
}

func (c *ScanChecker) Name() string { return "scan" }

func (c *ScanChecker) Check(context.Context) CheckResult {
	if c.active() {
		return CheckResult{Status: StatusHealthy, Message: "scan running"}
	}
	return CheckResult{Status: StatusHealthy, Message: "idle"}
}
