package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autogov/internal/logging"
)

// maxTransparencyRecords bounds each transparency file.
const maxTransparencyRecords = 200

// OverrideRecord notes one human override the engine honored: a
// reopened rejection pulled back into the backlog, or a human-endorsed
// proposal promoted without debate.
type OverrideRecord struct {
	Time   time.Time `json:"time"`
	Issue  int       `json:"issue"`
	Title  string    `json:"title"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}

// SuggestionRecord notes one triaged proposal and how the debate went.
type SuggestionRecord struct {
	Time     time.Time `json:"time"`
	Issue    int       `json:"issue"`
	Title    string    `json:"title"`
	Accepted bool      `json:"accepted"`
	Strength float64   `json:"strength_score,omitempty"`
	Weakness float64   `json:"weakness_score,omitempty"`
	Bypass   bool      `json:"human_bypass,omitempty"`
}

// MergeRecord notes one merged improvement PR.
type MergeRecord struct {
	Time   time.Time `json:"time"`
	Issue  int       `json:"issue"`
	PR     int       `json:"pr"`
	Branch string    `json:"branch,omitempty"`
	Title  string    `json:"title"`
	Rounds int       `json:"rounds,omitempty"`
}

// Transparency maintains the public record files under the output
// tree: overrides.json, suggestions.json and pr_merges.json, each a
// JSON array, newest first, capped at maxTransparencyRecords.
type Transparency struct {
	dir string
	mu  sync.Mutex
}

// NewTransparency returns a Transparency writing under dir.
func NewTransparency(dir string) *Transparency {
	return &Transparency{dir: dir}
}

// RecordOverride appends a human-override record.
func (t *Transparency) RecordOverride(rec OverrideRecord) error {
	return record(t, "overrides.json", rec)
}

// RecordSuggestion appends a debate-outcome record.
func (t *Transparency) RecordSuggestion(rec SuggestionRecord) error {
	return record(t, "suggestions.json", rec)
}

// RecordMerge appends a merged-PR record.
func (t *Transparency) RecordMerge(rec MergeRecord) error {
	return record(t, "pr_merges.json", rec)
}

// record prepends rec to the named file under a read-modify-write
// guarded by the Transparency mutex. A corrupt file is replaced rather
// than propagated.
func record[T any](t *Transparency, name string, rec T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := filepath.Join(t.dir, name)
	var records []T
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			logging.Publish("transparency file %s corrupt, starting over: %v", name, err)
			records = nil
		}
	}
	records = append([]T{rec}, records...)
	if len(records) > maxTransparencyRecords {
		records = records[:maxTransparencyRecords]
	}
	return writeJSONAtomic(path, records)
}
