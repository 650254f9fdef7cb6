package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the Controller advances simulation ticks.
type Mode int

const (
	// Accelerated advances as quickly as the step function can run.
	Accelerated Mode = iota
	// RealTime paces ticks against wall-clock time, one tick per Interval.
	RealTime
)

// Config controls pacing.
type Config struct {
	// Mode selects accelerated or wall-clock pacing.
	Mode Mode
	// Interval is the wall-clock duration of one tick in RealTime mode.
	// Zero falls back to one second, the nominal tick length.
	Interval time.Duration
}

// StepFunc advances the simulation by one tick at simulated time t.
type StepFunc func(ctx context.Context, t int64)

// Controller drives a simulation loop tick by tick. It tracks the current
// tick so concurrent readers (snapshot servers, metrics scrapes) can ask
// how far the run has progressed.
type Controller struct {
	cfg Config

	mu      sync.RWMutex
	current int64
}

// New constructs a controller.
func New(cfg Config) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Controller{cfg: cfg}
}

// CurrentTick returns the most recently completed tick, or -1 before the
// first tick runs.
func (c *Controller) CurrentTick() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current - 1
}

// Run executes step for ticks 0..ticks-1, pacing according to the mode.
// Cancellation lands on a tick boundary and returns the context error.
func (c *Controller) Run(ctx context.Context, ticks int64, step StepFunc) error {
	var ticker *time.Ticker
	if c.cfg.Mode == RealTime {
		ticker = time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
	}

	c.mu.Lock()
	c.current = 0
	c.mu.Unlock()

	for t := int64(0); t < ticks; t++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		step(ctx, t)

		c.mu.Lock()
		c.current = t + 1
		c.mu.Unlock()
	}
	return nil
}
