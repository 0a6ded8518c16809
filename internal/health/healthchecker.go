// Package health tracks liveness of the service's dependencies (store, responder webhook).
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var componentUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "companion_component_up",
	Help: "1 when the named dependency passed its last health evaluation.",
}, []string{"component"})

// HealthChecker is implemented by component-level checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// HealthPinger is a component that can answer a cheap reachability probe.
// HealthPing returns nil when the component is usable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// ServiceHealthChecker is healthy only while every dependency is healthy.
type ServiceHealthChecker struct {
	up   atomic.Bool
	deps []HealthChecker
	log  zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy returns the result of the last evaluation.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.up.Load() }

// Components reports each dependency's cached state by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Start launches every dependency checker, then re-evaluates on each tick until ctx ends.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	for _, c := range h.deps {
		go c.Start(ctx, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.evaluate()
		}
	}
}

func (h *ServiceHealthChecker) evaluate() {
	all := true
	for _, c := range h.deps {
		ok := c.IsHealthy()
		if ok {
			componentUp.WithLabelValues(c.Name()).Set(1)
		} else {
			componentUp.WithLabelValues(c.Name()).Set(0)
			all = false
		}
	}
	if prev := h.up.Swap(all); prev != all {
		if all {
			h.log.Info().Msg("service health: UP")
		} else {
			h.log.Error().Interface("components", h.Components()).Msg("service health: DOWN")
		}
	}
}

// PingChecker polls a HealthPinger and caches the outcome. It starts unhealthy
// and flips to unhealthy only after FailureThreshold consecutive failed probes.
type PingChecker struct {
	name         string
	pinger       HealthPinger
	log          zerolog.Logger
	probeTimeout time.Duration
	threshold    int

	mu       sync.Mutex
	healthy  bool
	failures int
	lastErr  error
}

// PingOption tunes a PingChecker.
type PingOption func(*PingChecker)

// WithFailureThreshold sets how many consecutive failures mark the component down.
func WithFailureThreshold(n int) PingOption {
	return func(c *PingChecker) {
		if n > 0 {
			c.threshold = n
		}
	}
}

func NewPingChecker(name string, p HealthPinger, log zerolog.Logger, probeTimeout time.Duration, opts ...PingOption) *PingChecker {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	c := &PingChecker{name: name, pinger: p, log: log, probeTimeout: probeTimeout, threshold: 1}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// LastError returns the error of the most recent failed probe, or nil after a success.
func (c *PingChecker) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Probe runs one check and reports the resulting cached state.
func (c *PingChecker) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	err := c.pinger.HealthPing(pctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.healthy, c.failures, c.lastErr = true, 0, nil
		return true
	}
	c.failures++
	c.lastErr = err
	if c.failures >= c.threshold {
		c.healthy = false
	}
	c.log.Warn().Str("checker", c.name).Int("consecutive_failures", c.failures).Err(err).Msg("health probe failed")
	return c.healthy
}

func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	c.Probe(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}
