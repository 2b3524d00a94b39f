// Package worker is the message boundary between a host and the particle
// simulation. The host sends Configure messages and receives one Result per
// tick; nothing else crosses the boundary.
package worker

import (
	"github.com/talgya/particle-worker/internal/engine"
	"github.com/talgya/particle-worker/internal/particle"
)

// Configure (host → core) resets the simulation. Optional fields fall back to
// the scenario defaults: startPos [0,0,0,0], startVel [0.1,0.2,-0.1,-0.2].
type Configure struct {
	RoomSize    [2]float64 `json:"roomSize"`              // [halfWidth, halfHeight]
	NumPoints   int        `json:"numPoints"`             // ≤ 0 runs an empty simulation
	StartPos    []float64  `json:"startPos,omitempty"`    // [xLo, xHi, yLo, yHi]
	StartVel    []float64  `json:"startVel,omitempty"`    // [xLo, xHi, yLo, yHi]
	StartAnchor []float64  `json:"startAnchor,omitempty"` // [x, y]
	Seed        int64      `json:"seed,omitempty"`        // 0 = environment entropy
	Scenario    string     `json:"scenario,omitempty"`
}

// Resolve turns the message into a simulation config. The second return is
// false when the named scenario was unknown and the default was used.
// Malformed ranges fall back to defaults rather than failing.
func (c Configure) Resolve() (engine.Config, bool) {
	name := engine.Scenario(c.Scenario)
	if name == "" {
		name = engine.DefaultScenario
	}
	cfg, known := engine.ScenarioConfig(name, c.NumPoints, c.RoomSize[0], c.RoomSize[1])

	if r, ok := toRange(c.StartPos); ok {
		cfg.Emitter.Position = r
	}
	if r, ok := toRange(c.StartVel); ok {
		cfg.Emitter.Velocity = r
	}
	if len(c.StartAnchor) >= 2 {
		cfg.Emitter.Anchor = [2]float64{c.StartAnchor[0], c.StartAnchor[1]}
	}
	cfg.Seed = c.Seed
	return cfg, known
}

func toRange(v []float64) (particle.Range, bool) {
	var r particle.Range
	if len(v) != len(r) {
		return r, false
	}
	copy(r[:], v)
	return r, true
}

// Result (core → host) is emitted once per tick. The cover fields are only
// present for scenarios that have a cover.
type Result struct {
	RunID        string       `json:"runId"`
	Tick         uint64       `json:"tick"`
	Elapsed      float64      `json:"elapsed"`
	Positions    []float64    `json:"positions"`
	CoverOpacity *float64     `json:"coverOpacity,omitempty"`
	Phase        *int         `json:"phase,omitempty"`
	PhaseSwitch  *bool        `json:"phaseSwitch,omitempty"`
	Stats        engine.Stats `json:"stats"`
}

func newResult(runID string, f engine.Frame) Result {
	r := Result{
		RunID:     runID,
		Tick:      f.Tick,
		Elapsed:   f.Elapsed,
		Positions: f.Positions,
		Stats:     f.Stats,
	}
	if sig := f.Signals; sig.HasCover {
		opacity, phase, sw := sig.CoverOpacity, sig.Phase, sig.PhaseSwitch
		r.CoverOpacity = &opacity
		r.Phase = &phase
		r.PhaseSwitch = &sw
	}
	return r
}

// RunInfo describes the configuration a worker is currently running.
type RunInfo struct {
	RunID     string          `json:"runId"`
	Scenario  engine.Scenario `json:"scenario"`
	NumPoints int             `json:"numPoints"`
	RoomSize  [2]float64      `json:"roomSize"`
	Seed      int64           `json:"seed"`
	Config    Configure       `json:"config"`
}
