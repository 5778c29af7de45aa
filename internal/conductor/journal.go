package conductor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autogov/internal/logging"
)

// JournalEntry is one planner note, one JSON line. The journal is the
// only state the conductor carries between cycles.
type JournalEntry struct {
	Cycle     int       `json:"cycle"`
	Time      time.Time `json:"time"`
	Reasoning string    `json:"reasoning"`
	Actions   []string  `json:"actions"`
	Notes     string    `json:"notes,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Journal persists planner entries as append-only JSONL, trimmed to the
// newest maxLines so the file never grows without bound.
type Journal struct {
	mu       sync.Mutex
	path     string
	maxLines int
}

// NewJournal creates a journal at path keeping at most maxLines entries.
func NewJournal(path string, maxLines int) *Journal {
	if maxLines < 1 {
		maxLines = 50
	}
	return &Journal{path: path, maxLines: maxLines}
}

// Append writes one entry and trims the file when it exceeds the line
// cap.
func (j *Journal) Append(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	_, werr := f.Write(append(data, '\n'))
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("append journal: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close journal: %w", cerr)
	}
	return j.trimLocked()
}

// Last returns the newest n entries, oldest first. Unreadable lines are
// skipped; a missing file is an empty journal.
func (j *Journal) Last(n int) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (j *Journal) readAll() ([]JournalEntry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []JournalEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e JournalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.ConductorWarn("skipping bad journal line: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("scan journal: %w", err)
	}
	return entries, nil
}

// trimLocked rewrites the file with only the newest maxLines entries.
// Callers hold j.mu.
func (j *Journal) trimLocked() error {
	entries, err := j.readAll()
	if err != nil || len(entries) <= j.maxLines {
		return err
	}
	entries = entries[len(entries)-j.maxLines:]

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open journal temp: %w", err)
	}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write journal temp: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close journal temp: %w", err)
	}
	return os.Rename(tmp, j.path)
}
