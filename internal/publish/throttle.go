package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// analysisState is the on-disk throttle record. Date and count cover
// the per-day cap, last_ts the minimum gap between runs.
type analysisState struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	LastTS string `json:"last_ts,omitempty"`
}

// Throttle rate-limits analysis publication: at most perDay per
// calendar day (UTC) with at least minGap between consecutive ones. The
// gap applies across midnight; the count does not.
type Throttle struct {
	path   string
	perDay int
	minGap time.Duration
}

// NewThrottle returns a Throttle persisting its state at path.
func NewThrottle(path string, perDay int, minGap time.Duration) *Throttle {
	return &Throttle{path: path, perDay: perDay, minGap: minGap}
}

// Allowed reports whether an analysis may run now. A missing or corrupt
// state file never blocks; Record rewrites it.
func (t *Throttle) Allowed(now time.Time) bool {
	st := t.load()
	if st.Date == day(now) && st.Count >= t.perDay {
		return false
	}
	if st.LastTS != "" {
		if last, err := time.Parse(time.RFC3339, st.LastTS); err == nil && now.Sub(last) < t.minGap {
			return false
		}
	}
	return true
}

// Record notes one published analysis at now.
func (t *Throttle) Record(now time.Time) error {
	st := t.load()
	if st.Date != day(now) {
		st.Date, st.Count = day(now), 0
	}
	st.Count++
	st.LastTS = now.UTC().Format(time.RFC3339)
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}

func (t *Throttle) load() analysisState {
	var st analysisState
	data, err := os.ReadFile(t.path)
	if err != nil {
		return st
	}
	_ = json.Unmarshal(data, &st)
	return st
}

func day(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
