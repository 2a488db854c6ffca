// Package health provides cached component health checking for the agent.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is implemented by components that expose a health probe. HealthPing
// returns nil when the component is healthy.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

// Checker probes one component periodically and caches the result so the
// health endpoint never blocks on a probe.
type Checker struct {
	name         string
	pinger       Pinger
	healthy      atomic.Int32
	probeTimeout time.Duration
	log          zerolog.Logger
}

// NewChecker creates a checker for a named component. Checkers start
// unhealthy until the first successful probe.
func NewChecker(name string, pinger Pinger, probeTimeout time.Duration, log zerolog.Logger) *Checker {
	c := &Checker{name: name, pinger: pinger, probeTimeout: probeTimeout, log: log}
	c.healthy.Store(0)
	return c
}

// Name returns the component name.
func (c *Checker) Name() string { return c.name }

// IsHealthy returns the cached health status without probing.
func (c *Checker) IsHealthy() bool { return c.healthy.Load() == 1 }

// Start probes on the given interval until ctx ends. The first probe runs
// immediately.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		to := c.probeTimeout
		if to <= 0 {
			to = 2 * time.Second
		}
		probeCtx, cancel := context.WithTimeout(ctx, to)
		defer cancel()

		prev := c.healthy.Load()
		if err := c.pinger.HealthPing(probeCtx); err != nil {
			c.healthy.Store(0)
			if prev == 1 {
				c.log.Error().Err(err).Str("component", c.name).Msg("component health: DOWN")
			}
			return
		}
		c.healthy.Store(1)
		if prev == 0 {
			c.log.Info().Str("component", c.name).Msg("component health: UP")
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// AllHealthy reports whether every checker is currently healthy.
func AllHealthy(checkers ...*Checker) bool {
	for _, c := range checkers {
		if !c.IsHealthy() {
			return false
		}
	}
	return true
}
