package conductor

// RunState classifies the observed run. Triage runs before any decision and
// only looks at the snapshot.
type RunState string

const (
	StateIdle      RunState = "IDLE"      // no run configured, or the ticker is stopped
	StateEmpty     RunState = "EMPTY"     // configured with zero particles
	StateExhausted RunState = "EXHAUSTED" // every particle stopped and none will recycle
	StateSettled   RunState = "SETTLED"   // cover has peaked and faded out
	StateExpired   RunState = "EXPIRED"   // ran longer than the plan allows
	StatePlaying   RunState = "PLAYING"
)

// RunHealth holds derived signals computed from a Snapshot.
type RunHealth struct {
	State       RunState
	Scenario    string
	Points      int
	LaunchedPct float64
	StoppedPct  float64
	Elapsed     float64
}

// Triage computes a RunHealth from the snapshot. maxElapsed (ms of
// simulation time) bounds endlessly recycling scenarios; 0 disables it.
func Triage(snap *Snapshot, maxElapsed float64) *RunHealth {
	s := snap.Status
	h := &RunHealth{Elapsed: s.Elapsed}

	if snap.Run == nil || !s.Running {
		h.State = StateIdle
		return h
	}
	h.Scenario = string(snap.Run.Scenario)
	h.Points = snap.Run.NumPoints

	if h.Points <= 0 {
		h.State = StateEmpty
		return h
	}
	h.LaunchedPct = float64(s.Stats.Launched) / float64(h.Points)
	h.StoppedPct = float64(s.Stats.Stopped) / float64(h.Points)

	switch {
	case s.Stats.Stopped == h.Points:
		h.State = StateExhausted
	case s.Phase != nil && *s.Phase >= 1 && s.CoverOpacity != nil && *s.CoverOpacity == 0:
		h.State = StateSettled
	case maxElapsed > 0 && s.Elapsed >= maxElapsed:
		h.State = StateExpired
	default:
		h.State = StatePlaying
	}
	return h
}
