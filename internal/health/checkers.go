// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"time"

	"github.com/ManuGH/kamiya/internal/resilience"
)

// BreakerChecker reports the CMS circuit breaker. An open breaker means
// content pages render their maintenance state, so it degrades readiness
// instead of failing it.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker for a circuit breaker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(context.Context) CheckResult {
	if c.breaker == nil {
		return CheckResult{Status: StatusHealthy, Message: "not configured"}
	}
	switch state := c.breaker.State(); state {
	case resilience.StateOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit open", Error: resilience.ErrCircuitOpen.Error()}
	case resilience.StateHalfOpen:
		return CheckResult{Status: StatusDegraded, Message: "circuit probing"}
	default:
		return CheckResult{Status: StatusHealthy, Message: string(state)}
	}
}

// Pinger is a dependency with a remote health probe, such as the redis cache.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingChecker probes a Pinger with a timeout. Failures degrade readiness:
// the CMS client serves uncached reads when the cache is down.
type PingChecker struct {
	name    string
	pinger  Pinger
	timeout time.Duration
}

// NewPingChecker creates a checker for a Pinger. A zero timeout means 2s.
func NewPingChecker(name string, pinger Pinger, timeout time.Duration) *PingChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingChecker{name: name, pinger: pinger, timeout: timeout}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "ping failed", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// DirChecker checks that a directory exists, e.g. the image assets root.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for directory existence
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "not configured (optional)",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusDegraded,
				Error:   "directory not found",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if !info.IsDir() {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "expected directory, got file",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "directory exists",
	}
}
