package conductor

import (
	"fmt"
	"log/slog"

	"github.com/talgya/particle-worker/internal/engine"
	"github.com/talgya/particle-worker/internal/worker"
)

// Plan describes what the conductor plays.
type Plan struct {
	Rotation   []engine.Scenario
	RoomSize   [2]float64
	NumPoints  int
	MaxElapsed float64 // ms of simulation time before a recycling run is replaced
}

// DefaultPlan cycles every preset in a 100×100 room.
func DefaultPlan() Plan {
	return Plan{
		Rotation:   engine.Scenarios(),
		RoomSize:   [2]float64{100, 100},
		NumPoints:  1000,
		MaxElapsed: 30000,
	}
}

// Decision is the conductor's action for one cycle.
type Decision struct {
	Action    string            `json:"action"` // "none" or "configure"
	Rationale string            `json:"rationale"`
	Configure *worker.Configure `json:"configure,omitempty"`
}

// Next returns the scenario after current in the rotation. Unknown or empty
// names restart the rotation.
func (p Plan) Next(current string) engine.Scenario {
	if len(p.Rotation) == 0 {
		return engine.DefaultScenario
	}
	for i, s := range p.Rotation {
		if string(s) == current {
			return p.Rotation[(i+1)%len(p.Rotation)]
		}
	}
	return p.Rotation[0]
}

// Decide picks the action for the triaged run.
func Decide(h *RunHealth, p Plan) *Decision {
	switch h.State {
	case StatePlaying:
		return &Decision{
			Action:    "none",
			Rationale: fmt.Sprintf("%s playing: %.0f%% launched, %.0f%% stopped", h.Scenario, h.LaunchedPct*100, h.StoppedPct*100),
		}
	case StateIdle:
		first := p.Next("")
		return configureDecision(p, first, "no run active, starting rotation")
	}

	next := p.Next(h.Scenario)
	rationale := fmt.Sprintf("%s %s after %.0fms", h.Scenario, h.State, h.Elapsed)
	slog.Debug("conductor rotating", "from", h.Scenario, "to", next, "state", h.State)
	return configureDecision(p, next, rationale)
}

func configureDecision(p Plan, s engine.Scenario, rationale string) *Decision {
	return &Decision{
		Action:    "configure",
		Rationale: rationale,
		Configure: &worker.Configure{
			RoomSize:  p.RoomSize,
			NumPoints: p.NumPoints,
			Scenario:  string(s),
		},
	}
}
