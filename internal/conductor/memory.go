package conductor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 20

// CycleRecord captures what happened in a single conductor cycle.
type CycleRecord struct {
	Tick      uint64   `json:"tick"`
	Action    string   `json:"action"`
	State     RunState `json:"state"`
	Scenario  string   `json:"scenario"`
	RunID     string   `json:"run_id,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

// CycleMemory keeps a ring of recent cycle records, persisted as JSON.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("conductor memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk. A memory without a path stays in process.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal conductor memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write conductor memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Played counts configure actions per scenario.
func (m *CycleMemory) Played() map[string]int {
	counts := make(map[string]int)
	for _, r := range m.Records {
		if r.Action == "configure" {
			counts[r.Scenario]++
		}
	}
	return counts
}

// Summary returns a one-line digest of the last n cycles.
func (m *CycleMemory) Summary(n int) string {
	if len(m.Records) == 0 {
		return ""
	}
	start := 0
	if len(m.Records) > n {
		start = len(m.Records) - n
	}
	parts := make([]string, 0, len(m.Records)-start)
	for _, r := range m.Records[start:] {
		parts = append(parts, fmt.Sprintf("%s:%s/%s", r.Scenario, r.State, r.Action))
	}
	return strings.Join(parts, " ")
}
