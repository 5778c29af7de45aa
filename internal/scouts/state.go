// Package scouts runs the rate-limited intake agents: the news scout
// that turns discovered decisions into analysis issues, and the research
// scout that files improvement proposals on a longer interval. Both are
// modeled the same way, a periodic agent gated by a small local state
// file.
package scouts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"autogov/internal/logging"
)

// newsState gates the news scout to one run per calendar day.
type newsState struct {
	LastDate string `json:"last_date"`
}

// researchState gates the research scout to one run per interval.
type researchState struct {
	LastTS time.Time `json:"last_ts"`
}

// loadState reads a state file into v. A missing or corrupt file leaves
// v at its zero value so the scout stays runnable; rate limiting must
// never wedge shut on a bad file.
func loadState(path string, v interface{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logging.Scouts("state file %s unreadable, treating as empty: %v", path, err)
	}
}

// saveState writes v atomically via temp file and rename.
func saveState(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
