// Package persistence provides SQLite-based run history storage.
// Every configuration becomes a run row; phase switches and periodic
// population samples are appended as the run ticks.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/particle-worker/internal/worker"
)

// timeLayout is fixed width so started_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		num_points INTEGER NOT NULL,
		room_w REAL NOT NULL,
		room_h REAL NOT NULL,
		seed INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS phase_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		elapsed_ms REAL NOT NULL,
		phase INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		elapsed_ms REAL NOT NULL,
		not_started INTEGER NOT NULL,
		launched INTEGER NOT NULL,
		stopped INTEGER NOT NULL,
		recycles INTEGER NOT NULL,
		cover_opacity REAL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_phase_events_run ON phase_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is a stored configuration.
type Run struct {
	ID         string  `db:"id" json:"id"`
	Scenario   string  `db:"scenario" json:"scenario"`
	NumPoints  int     `db:"num_points" json:"num_points"`
	RoomW      float64 `db:"room_w" json:"room_w"`
	RoomH      float64 `db:"room_h" json:"room_h"`
	Seed       int64   `db:"seed" json:"seed"`
	ConfigJSON string  `db:"config_json" json:"config"`
	StartedAt  string  `db:"started_at" json:"started_at"`
}

// PhaseEvent is a stored phase switch.
type PhaseEvent struct {
	RunID     string  `db:"run_id" json:"run_id"`
	Tick      uint64  `db:"tick" json:"tick"`
	ElapsedMS float64 `db:"elapsed_ms" json:"elapsed_ms"`
	Phase     int     `db:"phase" json:"phase"`
}

// Sample is a stored population snapshot.
type Sample struct {
	RunID        string   `db:"run_id" json:"run_id"`
	Tick         uint64   `db:"tick" json:"tick"`
	ElapsedMS    float64  `db:"elapsed_ms" json:"elapsed_ms"`
	NotStarted   int      `db:"not_started" json:"not_started"`
	Launched     int      `db:"launched" json:"launched"`
	Stopped      int      `db:"stopped" json:"stopped"`
	Recycles     uint64   `db:"recycles" json:"recycles"`
	CoverOpacity *float64 `db:"cover_opacity" json:"cover_opacity,omitempty"`
}

// SaveRun records a new configuration.
func (db *DB) SaveRun(info worker.RunInfo, startedAt time.Time) error {
	cfgJSON, err := json.Marshal(info.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = db.conn.Exec(`INSERT INTO runs
		(id, scenario, num_points, room_w, room_h, seed, config_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, string(info.Scenario), info.NumPoints,
		info.RoomSize[0], info.RoomSize[1], info.Seed,
		string(cfgJSON), startedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", info.RunID, err)
	}

	return db.SaveMeta("last_run", info.RunID)
}

// SavePhaseEvent appends a phase switch.
func (db *DB) SavePhaseEvent(e PhaseEvent) error {
	_, err := db.conn.Exec(
		"INSERT INTO phase_events (run_id, tick, elapsed_ms, phase) VALUES (?, ?, ?, ?)",
		e.RunID, e.Tick, e.ElapsedMS, e.Phase,
	)
	return err
}

// SaveSamples appends a batch of samples in one transaction.
func (db *DB) SaveSamples(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO samples
		(run_id, tick, elapsed_ms, not_started, launched, stopped, recycles, cover_opacity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		_, err := stmt.Exec(
			s.RunID, s.Tick, s.ElapsedMS,
			s.NotStarted, s.Launched, s.Stopped, s.Recycles, s.CoverOpacity,
		)
		if err != nil {
			return fmt.Errorf("insert sample %s/%d: %w", s.RunID, s.Tick, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	return runs, err
}

// PhaseEvents returns a run's phase switches in tick order.
func (db *DB) PhaseEvents(runID string) ([]PhaseEvent, error) {
	var events []PhaseEvent
	err := db.conn.Select(&events,
		"SELECT run_id, tick, elapsed_ms, phase FROM phase_events WHERE run_id = ? ORDER BY tick",
		runID,
	)
	return events, err
}

// Samples returns a run's samples in tick order.
func (db *DB) Samples(runID string) ([]Sample, error) {
	var samples []Sample
	err := db.conn.Select(&samples,
		`SELECT run_id, tick, elapsed_ms, not_started, launched, stopped, recycles, cover_opacity
		 FROM samples WHERE run_id = ? ORDER BY tick`,
		runID,
	)
	return samples, err
}

// Recorder turns the result stream into stored history. It keeps every
// phase switch and one sample per Every ticks, flushing samples in batches.
type Recorder struct {
	db        *DB
	Every     uint64 // Sample period in ticks; 0 disables sampling
	BatchSize int

	pending []Sample
}

// NewRecorder creates a recorder sampling every n ticks.
func NewRecorder(db *DB, every uint64) *Recorder {
	return &Recorder{db: db, Every: every, BatchSize: 64}
}

// Observe records what is worth keeping from one result.
func (r *Recorder) Observe(res worker.Result) error {
	if res.PhaseSwitch != nil && *res.PhaseSwitch {
		e := PhaseEvent{RunID: res.RunID, Tick: res.Tick, ElapsedMS: res.Elapsed, Phase: *res.Phase}
		if err := r.db.SavePhaseEvent(e); err != nil {
			return fmt.Errorf("save phase event: %w", err)
		}
		slog.Info("phase switch", "run", res.RunID, "phase", e.Phase, "tick", e.Tick)
	}

	if !r.samples(res.Tick) {
		return nil
	}

	r.pending = append(r.pending, Sample{
		RunID:        res.RunID,
		Tick:         res.Tick,
		ElapsedMS:    res.Elapsed,
		NotStarted:   res.Stats.NotStarted,
		Launched:     res.Stats.Launched,
		Stopped:      res.Stats.Stopped,
		Recycles:     res.Stats.Recycles,
		CoverOpacity: res.CoverOpacity,
	})
	if len(r.pending) >= r.BatchSize {
		return r.Flush()
	}
	return nil
}

func (r *Recorder) samples(tick uint64) bool {
	return r.Every != 0 && tick%r.Every == 0
}

// Flush writes any buffered samples.
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.db.SaveSamples(r.pending); err != nil {
		return fmt.Errorf("save samples: %w", err)
	}
	slog.Debug("samples flushed", "count", len(r.pending))
	r.pending = r.pending[:0]
	return nil
}
