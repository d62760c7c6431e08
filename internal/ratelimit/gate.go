// Package ratelimit gates outbound CRM calls against a daily call budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Gate throttles callers once the current window's call count reaches the
// budget. It never rejects: a caller over budget sleeps until the window
// rolls over, then proceeds. Every outbound CRM call passes through Wait
// before being issued.
type Gate struct {
	mu          sync.Mutex
	budget      int
	window      time.Duration
	count       int
	windowStart time.Time

	smoother *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Gate.
type Option func(*Gate)

// WithSmoothing adds a per-second ceiling on top of the window budget so
// bursts do not hammer the remote API even when the daily budget is far off.
func WithSmoothing(rps float64) Option {
	return func(g *Gate) {
		if rps > 0 {
			g.smoother = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithClock injects the time source and sleeper. Used by tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gate) {
		g.now = now
		g.sleep = sleep
	}
}

// New creates a gate allowing budget calls per window. A non-positive
// budget disables window accounting (smoothing still applies if set).
func New(budget int, window time.Duration, opts ...Option) *Gate {
	g := &Gate{
		budget: budget,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	if g.window <= 0 {
		g.window = 24 * time.Hour
	}
	for _, opt := range opts {
		opt(g)
	}
	g.windowStart = g.now()
	return g
}

// Wait blocks until one more call is allowed. It returns an error only when
// ctx is cancelled during the wait; the gate itself never fails a call.
func (g *Gate) Wait(ctx context.Context) error {
	if g.smoother != nil {
		if err := g.smoother.Wait(ctx); err != nil {
			return err
		}
	}
	if g.budget <= 0 {
		return nil
	}

	g.mu.Lock()
	g.rollWindowLocked()

	if g.count >= g.budget {
		until := g.windowStart.Add(g.window)
		wait := until.Sub(g.now())
		g.mu.Unlock()

		zap.L().Warn("call budget exhausted, throttling",
			zap.Int("budget", g.budget),
			zap.Duration("wait", wait),
		)
		if wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}

		g.mu.Lock()
		g.rollWindowLocked()
	}

	g.count++
	g.mu.Unlock()
	return nil
}

// Remaining returns the calls left in the current window, for reporting.
func (g *Gate) Remaining() int {
	if g.budget <= 0 {
		return -1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollWindowLocked()
	return g.budget - g.count
}

func (g *Gate) rollWindowLocked() {
	now := g.now()
	for !now.Before(g.windowStart.Add(g.window)) {
		g.windowStart = g.windowStart.Add(g.window)
		g.count = 0
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
