package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/particle-worker/internal/engine"
)

// ErrStopped is returned by Configure once Run has exited.
var ErrStopped = errors.New("worker stopped")

type configRequest struct {
	msg  Configure
	resp chan RunInfo
}

// Worker owns at most one running simulation. All state changes happen on
// the Run goroutine; a reconfiguration cancels the running tick driver and
// waits for it to exit before building the replacement.
type Worker struct {
	eng     *engine.Engine
	configs chan configRequest
	results chan Result
	stopped chan struct{}

	// NewRunID names each configuration. Replaced in tests.
	NewRunID func() string

	mu      sync.RWMutex
	current *RunInfo
}

// New creates a worker ticking with eng.
func New(eng *engine.Engine) *Worker {
	if eng == nil {
		eng = engine.NewEngine()
	}
	return &Worker{
		eng:      eng,
		configs:  make(chan configRequest),
		results:  make(chan Result),
		stopped:  make(chan struct{}),
		NewRunID: uuid.NewString,
	}
}

// Engine returns the tick driver (for speed control).
func (w *Worker) Engine() *engine.Engine {
	return w.eng
}

// Results delivers one Result per tick. The channel is unbuffered, so a
// result received after Configure returns always belongs to the new run.
// It is closed when Run exits.
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Current returns the active run, or nil before the first Configure.
func (w *Worker) Current() *RunInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return nil
	}
	info := *w.current
	return &info
}

// Configure sends a configuration and waits until the new run is ticking.
func (w *Worker) Configure(ctx context.Context, msg Configure) (RunInfo, error) {
	req := configRequest{msg: msg, resp: make(chan RunInfo, 1)}
	select {
	case w.configs <- req:
	case <-w.stopped:
		return RunInfo{}, ErrStopped
	case <-ctx.Done():
		return RunInfo{}, ctx.Err()
	}

	select {
	case info := <-req.resp:
		return info, nil
	case <-w.stopped:
		return RunInfo{}, ErrStopped
	case <-ctx.Done():
		return RunInfo{}, ctx.Err()
	}
}

// Run processes configurations until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stopped)
	defer close(w.results)

	var (
		cancelRun context.CancelFunc
		runDone   chan struct{}
	)
	stop := func() {
		if cancelRun == nil {
			return
		}
		cancelRun()
		<-runDone
		cancelRun = nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopping")
			return ctx.Err()

		case req := <-w.configs:
			stop()

			info, sim := w.start(req.msg)
			runCtx, cancel := context.WithCancel(ctx)
			cancelRun = cancel
			runDone = make(chan struct{})

			go func(done chan struct{}) {
				defer close(done)
				w.eng.Run(runCtx, func(dt float64) {
					res := newResult(info.RunID, sim.Step(dt))
					select {
					case w.results <- res:
					case <-runCtx.Done():
					}
				})
			}(runDone)

			req.resp <- info
		}
	}
}

// start builds the simulation for msg and records it as current.
func (w *Worker) start(msg Configure) (RunInfo, *engine.Simulation) {
	cfg, known := msg.Resolve()
	if !known {
		slog.Warn("unknown scenario, using default", "requested", msg.Scenario, "scenario", cfg.Scenario)
	}
	sim := engine.NewSimulation(cfg)

	info := RunInfo{
		RunID:     w.NewRunID(),
		Scenario:  cfg.Scenario,
		NumPoints: sim.Len(),
		RoomSize:  msg.RoomSize,
		Seed:      sim.Seed(),
		Config:    msg,
	}

	w.mu.Lock()
	w.current = &info
	w.mu.Unlock()

	slog.Info("simulation configured",
		"run", info.RunID,
		"scenario", info.Scenario,
		"points", humanize.Comma(int64(info.NumPoints)),
		"arena", humanize.Bytes(sim.Store().SizeBytes()),
		"room", msg.RoomSize,
		"seed", info.Seed,
	)
	return info, sim
}
