// Package publish persists finished analyses for downstream renderers
// and keeps the public transparency records. Every document is written
// through a temp file and an atomic rename so a reader never observes a
// half-written JSON file, and every list it maintains is bounded.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"autogov/internal/cabinet"
	"autogov/internal/config"
	"autogov/internal/logging"
)

// IndexEntry is one row of analyses-index.json, the flat summary list
// that mirrors the per-decision documents.
type IndexEntry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TitleEN       string    `json:"title_en,omitempty"`
	Date          string    `json:"date"`
	Category      string    `json:"category"`
	AverageScore  float64   `json:"average_score"`
	DecisionScore int       `json:"decision_score,omitempty"`
	Verdict       string    `json:"verdict,omitempty"`
	HasCounter    bool      `json:"has_counter_proposal,omitempty"`
	IssueNumber   int       `json:"issue_number,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Store owns the analyses directory and its index.
type Store struct {
	paths config.PathsConfig
}

// NewStore returns a Store rooted at the configured output tree.
func NewStore(paths config.PathsConfig) *Store {
	return &Store{paths: paths}
}

// SaveResult persists one SessionResult under analyses/{id}.json and
// folds its summary into the index. The per-decision document lands
// before the index is touched, so the index never references a missing
// file.
func (s *Store) SaveResult(res *cabinet.SessionResult) error {
	if res == nil || res.Decision.ID == "" {
		return fmt.Errorf("refusing to save result without a decision id")
	}
	if err := os.MkdirAll(s.paths.AnalysesDir(), 0o755); err != nil {
		return err
	}
	path := s.paths.AnalysisPath(res.Decision.ID)
	if err := writeJSONAtomic(path, res); err != nil {
		return fmt.Errorf("save analysis %s: %w", res.Decision.ID, err)
	}
	if err := s.updateIndex(entryFor(res)); err != nil {
		return fmt.Errorf("index update for %s: %w", res.Decision.ID, err)
	}
	logging.Publish("saved analysis %s (%s)", res.Decision.ID, res.Decision.Title)
	return nil
}

// LoadResult reads one persisted analysis back.
func (s *Store) LoadResult(id string) (*cabinet.SessionResult, error) {
	data, err := os.ReadFile(s.paths.AnalysisPath(id))
	if err != nil {
		return nil, err
	}
	var res cabinet.SessionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("analysis %s corrupt: %w", id, err)
	}
	return &res, nil
}

// Index returns the current index, newest decision date first. A
// missing index is an empty one.
func (s *Store) Index() ([]IndexEntry, error) {
	data, err := os.ReadFile(s.paths.IndexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("index corrupt: %w", err)
	}
	return entries, nil
}

// updateIndex inserts or replaces the entry for e.ID and rewrites the
// index atomically. Re-publishing a decision overwrites its row rather
// than duplicating it.
func (s *Store) updateIndex(e IndexEntry) error {
	entries, err := s.Index()
	if err != nil {
		logging.Publish("index unreadable, rebuilding from scratch: %v", err)
		entries = nil
	}
	replaced := false
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return entries[i].GeneratedAt.After(entries[j].GeneratedAt)
	})
	return writeJSONAtomic(s.paths.IndexPath(), entries)
}

func entryFor(res *cabinet.SessionResult) IndexEntry {
	e := IndexEntry{
		ID:           res.Decision.ID,
		Title:        res.Decision.Title,
		TitleEN:      res.Decision.TitleEN,
		Date:         res.Decision.Date,
		Category:     string(res.Decision.Category),
		AverageScore: AverageScore(res.Assessments),
		HasCounter:   res.CounterProposal != nil,
		IssueNumber:  res.IssueNumber,
		GeneratedAt:  res.GeneratedAt,
	}
	if res.Critic != nil {
		e.DecisionScore = res.Critic.DecisionScore
	}
	if res.Parliament != nil {
		e.Verdict = string(res.Parliament.OverallVerdict)
	}
	return e
}

// AverageScore is the mean ministry score rounded to one decimal, 0
// when there are no assessments.
func AverageScore(assessments []cabinet.Assessment) float64 {
	if len(assessments) == 0 {
		return 0
	}
	sum := 0
	for _, a := range assessments {
		sum += a.Score
	}
	return float64(int(float64(sum)/float64(len(assessments))*10+0.5)) / 10
}

// writeJSONAtomic marshals v and replaces path in one rename.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
