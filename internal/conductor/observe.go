// Package conductor implements a headless host for the particle worker.
// It observes the running simulation via the API, decides whether the
// current run has played out, and reconfigures the worker with the next
// scenario in its rotation.
package conductor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/particle-worker/internal/engine"
	"github.com/talgya/particle-worker/internal/worker"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status Status          `json:"status"`
	Runs   []RunSummary    `json:"runs"`
	Run    *worker.RunInfo `json:"run,omitempty"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name         string          `json:"name"`
	Running      bool            `json:"running"`
	Speed        float64         `json:"speed"`
	Ticks        uint64          `json:"ticks"`
	Subscribers  int             `json:"subscribers"`
	Dropped      uint64          `json:"dropped"`
	Run          *worker.RunInfo `json:"run,omitempty"`
	Tick         uint64          `json:"tick"`
	Elapsed      float64         `json:"elapsed"`
	Stats        engine.Stats    `json:"stats"`
	Phase        *int            `json:"phase,omitempty"`
	CoverOpacity *float64        `json:"cover_opacity,omitempty"`
}

// RunSummary mirrors items from GET /api/v1/runs.
type RunSummary struct {
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	NumPoints int    `json:"num_points"`
	StartedAt string `json:"started_at"`
}

// Observer fetches simulation state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the status and run history. A host without a database
// answers /runs with 503; that is not an observation failure.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	snap.Run = snap.Status.Run

	if err := o.fetchJSON(ctx, "/api/v1/runs?limit=10", &snap.Runs); err != nil {
		var se *statusError
		if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
			return nil, fmt.Errorf("fetch runs: %w", err)
		}
		snap.Runs = nil
	}

	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/v1/status", nil)
	if err != nil {
		return false
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type statusError struct {
	Path string
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.Path, e.Code, e.Body)
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &statusError{Path: path, Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
