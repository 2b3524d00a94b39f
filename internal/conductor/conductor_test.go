package conductor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/particle-worker/internal/api"
	"github.com/talgya/particle-worker/internal/engine"
	"github.com/talgya/particle-worker/internal/worker"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func snapshot(scenario engine.Scenario, points int, stats engine.Stats) *Snapshot {
	return &Snapshot{
		Status: Status{Running: true, Stats: stats, Elapsed: 5000},
		Run:    &worker.RunInfo{RunID: "r", Scenario: scenario, NumPoints: points},
	}
}

func TestTriage(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		max  float64
		want RunState
	}{
		{"no run", &Snapshot{Status: Status{Running: true}}, 0, StateIdle},
		{"stopped ticker", &Snapshot{Run: &worker.RunInfo{NumPoints: 3}}, 0, StateIdle},
		{"empty", snapshot(engine.ScenarioCover, 0, engine.Stats{}), 0, StateEmpty},
		{"exhausted", snapshot(engine.ScenarioFountain, 4, engine.Stats{Stopped: 4}), 0, StateExhausted},
		{"playing", snapshot(engine.ScenarioSpray, 4, engine.Stats{Launched: 2, NotStarted: 2}), 0, StatePlaying},
		{"expired", snapshot(engine.ScenarioSpray, 4, engine.Stats{Launched: 4}), 1000, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Triage(tt.snap, tt.max).State; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTriageSettledCover(t *testing.T) {
	snap := snapshot(engine.ScenarioCover, 4, engine.Stats{Launched: 4})
	snap.Status.Phase = intp(1)
	snap.Status.CoverOpacity = floatp(0.4)
	if got := Triage(snap, 0).State; got != StatePlaying {
		t.Errorf("fading cover should still be playing, got %s", got)
	}
	snap.Status.CoverOpacity = floatp(0)
	if got := Triage(snap, 0).State; got != StateSettled {
		t.Errorf("expected SETTLED, got %s", got)
	}
}

func TestPlanNext(t *testing.T) {
	p := Plan{Rotation: []engine.Scenario{engine.ScenarioFountain, engine.ScenarioCover}}
	if got := p.Next(""); got != engine.ScenarioFountain {
		t.Errorf("expected rotation start, got %s", got)
	}
	if got := p.Next("fountain"); got != engine.ScenarioCover {
		t.Errorf("expected cover, got %s", got)
	}
	if got := p.Next("cover"); got != engine.ScenarioFountain {
		t.Errorf("expected wrap to fountain, got %s", got)
	}
	if got := (Plan{}).Next("spray"); got != engine.DefaultScenario {
		t.Errorf("empty rotation should use the default, got %s", got)
	}
}

func TestDecide(t *testing.T) {
	p := DefaultPlan()

	d := Decide(&RunHealth{State: StatePlaying, Scenario: "spray"}, p)
	if d.Action != "none" || d.Configure != nil {
		t.Errorf("playing run should be left alone, got %+v", d)
	}

	d = Decide(&RunHealth{State: StateExhausted, Scenario: "fountain"}, p)
	if d.Action != "configure" || d.Configure == nil {
		t.Fatalf("expected configure, got %+v", d)
	}
	if d.Configure.Scenario != "spray" {
		t.Errorf("expected spray after fountain, got %s", d.Configure.Scenario)
	}
	if d.Configure.NumPoints != p.NumPoints || d.Configure.RoomSize != p.RoomSize {
		t.Errorf("configure should carry the plan's sizing, got %+v", d.Configure)
	}

	d = Decide(&RunHealth{State: StateIdle}, p)
	if d.Configure == nil || d.Configure.Scenario != string(p.Rotation[0]) {
		t.Errorf("idle should start the rotation, got %+v", d)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	mem := LoadMemory(path)
	for i := 0; i < maxRecords+5; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: "configure", Scenario: "cover", State: StateSettled})
	}
	mem.Record(CycleRecord{Tick: 99, Action: "none", Scenario: "spray", State: StatePlaying})
	mem.Save()

	loaded := LoadMemory(path)
	if len(loaded.Records) != maxRecords {
		t.Fatalf("expected %d records, got %d", maxRecords, len(loaded.Records))
	}
	if last := loaded.Records[len(loaded.Records)-1]; last.Tick != 99 {
		t.Errorf("expected newest record last, got tick %d", last.Tick)
	}
	if got := loaded.Played()["cover"]; got != maxRecords-1 {
		t.Errorf("expected %d cover configures, got %d", maxRecords-1, got)
	}
	if got := loaded.Summary(1); got != "spray:PLAYING/none" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestLoadMemoryMissingFile(t *testing.T) {
	mem := LoadMemory(filepath.Join(t.TempDir(), "nope.json"))
	if len(mem.Records) != 0 {
		t.Errorf("expected empty memory, got %d records", len(mem.Records))
	}
}

func TestCycleAgainstServer(t *testing.T) {
	eng := engine.NewEngine()
	eng.Interval = time.Millisecond
	w := worker.New(eng)
	hub := api.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	go hub.Consume(w.Results())

	srv := &api.Server{Worker: w, Hub: hub, AdminKey: "k"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	obs := NewObserver(ts.URL)
	if !obs.Ready(ctx) {
		t.Fatal("expected API to be ready")
	}

	c := &Conductor{
		Observer: obs,
		Actor:    NewActor(ts.URL, "k"),
		Plan:     Plan{Rotation: []engine.Scenario{engine.ScenarioSpray}, RoomSize: [2]float64{50, 50}, NumPoints: 5},
		Memory:   &CycleMemory{},
	}

	d, err := c.Cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if d.Action != "configure" {
		t.Fatalf("first cycle should configure, got %s", d.Action)
	}
	info := w.Current()
	if info == nil || info.Scenario != engine.ScenarioSpray || info.NumPoints != 5 {
		t.Errorf("expected spray run with 5 points, got %+v", info)
	}
	if len(c.Memory.Records) != 1 || c.Memory.Records[0].RunID != info.RunID {
		t.Errorf("expected the cycle recorded with the new run id, got %+v", c.Memory.Records)
	}

	snap, err := obs.Observe(ctx)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if snap.Run == nil || snap.Run.RunID != info.RunID {
		t.Errorf("observer should see the new run, got %+v", snap.Run)
	}
	if snap.Runs != nil {
		t.Errorf("server without a database should yield no run history")
	}
}

func TestActorRejectsWrongKey(t *testing.T) {
	srv := &api.Server{Worker: worker.New(nil), Hub: api.NewHub(), AdminKey: "right"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := NewActor(ts.URL, "wrong").Configure(context.Background(), worker.Configure{NumPoints: 1})
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestObserveFailsOnBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	if _, err := NewObserver(ts.URL).Observe(context.Background()); err == nil {
		t.Error("expected error for 500 status")
	}
	if NewObserver(ts.URL).Ready(context.Background()) {
		t.Error("500 should not count as ready")
	}
}
