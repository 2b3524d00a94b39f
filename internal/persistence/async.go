package persistence

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/talgya/particle-worker/internal/worker"
)

// AsyncRecorder runs a Recorder on its own goroutine so SQLite latency
// stays off the result stream. Phase switches wait for queue space;
// samples are dropped when the queue is full.
type AsyncRecorder struct {
	rec     *Recorder
	queue   chan worker.Result
	done    chan error
	dropped atomic.Uint64
}

// NewAsyncRecorder starts a writer goroutine for rec with a queue of
// buffer results.
func NewAsyncRecorder(rec *Recorder, buffer int) *AsyncRecorder {
	a := &AsyncRecorder{
		rec:   rec,
		queue: make(chan worker.Result, buffer),
		done:  make(chan error, 1),
	}
	go a.loop()
	return a
}

// Observe queues the parts of res the recorder keeps. It must not be
// called after Close.
func (a *AsyncRecorder) Observe(res worker.Result) {
	phase := res.PhaseSwitch != nil && *res.PhaseSwitch
	if !phase && !a.rec.samples(res.Tick) {
		return
	}
	res.Positions = nil // never stored

	if phase {
		a.queue <- res
		return
	}
	select {
	case a.queue <- res:
	default:
		if a.dropped.Add(1) == 1 {
			slog.Warn("recorder queue full, dropping samples", "run", res.RunID, "tick", res.Tick)
		}
	}
}

func (a *AsyncRecorder) loop() {
	for res := range a.queue {
		if err := a.rec.Observe(res); err != nil {
			slog.Error("record failed", "run", res.RunID, "tick", res.Tick, "error", err)
		}
	}
	a.done <- a.rec.Flush()
}

// Close drains the queue, flushes pending samples and stops the writer.
func (a *AsyncRecorder) Close() error {
	close(a.queue)
	if err := <-a.done; err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return nil
}

// Dropped returns how many samples were skipped on a full queue.
func (a *AsyncRecorder) Dropped() uint64 {
	return a.dropped.Load()
}
