package conductor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Conductor ties the observe → triage → decide → act cycle together.
type Conductor struct {
	Observer *Observer
	Actor    *Actor
	Plan     Plan
	Memory   *CycleMemory
}

// Cycle runs one observe → decide → act pass and returns the decision taken.
func (c *Conductor) Cycle(ctx context.Context) (*Decision, error) {
	snap, err := c.Observer.Observe(ctx)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	health := Triage(snap, c.Plan.MaxElapsed)
	slog.Info("observation complete",
		"state", health.State,
		"scenario", health.Scenario,
		"tick", humanize.Comma(int64(snap.Status.Tick)),
		"points", humanize.Comma(int64(health.Points)),
		"launched", fmt.Sprintf("%.0f%%", health.LaunchedPct*100),
		"runs", len(snap.Runs),
	)

	decision := Decide(health, c.Plan)
	record := CycleRecord{
		Tick:      snap.Status.Tick,
		Action:    decision.Action,
		State:     health.State,
		Scenario:  health.Scenario,
		Rationale: decision.Rationale,
	}
	if snap.Run != nil {
		record.RunID = snap.Run.RunID
	}

	if decision.Configure != nil {
		info, err := c.Actor.Configure(ctx, *decision.Configure)
		if err != nil {
			return decision, fmt.Errorf("act: %w", err)
		}
		record.Scenario = string(info.Scenario)
		record.RunID = info.RunID
		slog.Info("run configured",
			"run", info.RunID,
			"scenario", info.Scenario,
			"points", humanize.Comma(int64(info.NumPoints)),
			"rationale", decision.Rationale,
		)
	}

	if c.Memory != nil {
		c.Memory.Record(record)
		c.Memory.Save()
	}
	return decision, nil
}
