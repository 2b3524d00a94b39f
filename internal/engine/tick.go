// Package engine provides the particle simulation instance and the
// fixed-rate tick driver that advances it.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultInterval is the 60 Hz tick period.
const DefaultInterval = time.Second / 60

// Engine drives a step function on a fixed period until cancelled.
type Engine struct {
	Interval time.Duration // Tick period (default 60 Hz)
	Clock    Clock

	speed   atomic.Uint64 // float64 bits; 1.0 = real time, 0 = paused
	ticks   atomic.Uint64 // Ticks run across all Run calls
	running atomic.Bool
}

// NewEngine creates a tick driver with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval: DefaultInterval,
		Clock:    SystemClock{},
	}
	e.SetSpeed(1)
	return e
}

// Speed returns the time multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed sets the time multiplier. Values ≤ 0 pause the simulation
// without stopping the driver.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(v))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Ticks returns the number of steps run.
func (e *Engine) Ticks() uint64 {
	return e.ticks.Load()
}

// Run calls step once per interval with the wall-time delta in ms, scaled by
// Speed. It blocks until ctx is cancelled; the wait between ticks is the only
// suspension point, so cancellation never interrupts a step.
func (e *Engine) Run(ctx context.Context, step func(dt float64)) {
	e.running.Store(true)
	defer e.running.Store(false)

	interval := e.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := e.Clock.Now()
	startTicks := e.Ticks()
	slog.Debug("tick driver started", "interval", interval, "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Debug("tick driver stopped", "ticks", humanize.Comma(int64(e.Ticks()-startTicks)))
			return
		case <-ticker.C:
		}

		now := e.Clock.Now()
		dt := Millis(now.Sub(last))
		last = now

		speed := e.Speed()
		if speed <= 0 {
			// Paused: wall time passes but the simulation does not.
			continue
		}

		e.ticks.Add(1)
		step(dt * speed)
	}
}
