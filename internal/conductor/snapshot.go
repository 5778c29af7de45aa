package conductor

import (
	"fmt"
	"strings"
	"time"

	"autogov/internal/telemetry"
	"autogov/internal/tracker"
)

// Snapshot is everything the planner is allowed to know about the world
// this cycle. The engine assembles it; the conductor only reads it.
type Snapshot struct {
	Cycle            int
	MaxCycles        int
	ProductiveCycles int
	DryRun           bool
	Model            string

	Telemetry    []telemetry.CycleTelemetry
	Errors       []telemetry.ErrorEntry
	Backlog      []tracker.Issue
	RecentClosed []tracker.Issue
	OpenPRs      []tracker.PullRequest
	RecentMerged []tracker.PullRequest
	Journal      []JournalEntry

	// Rate-limit predicates, precomputed by the engine so the planner
	// and the dispatcher agree on what is currently allowed.
	NewsAllowed     bool
	NewsToday       int
	ResearchDue     bool
	AnalysisAllowed bool

	// Baselines are the configured cadence expectations, one line per
	// action family, so frequency skew is visible next to the counts.
	Baselines []string

	CIHealth string
	Now      time.Time
}

// Render builds the markdown context block handed to the planner agent.
func (s *Snapshot) Render() string {
	var sb strings.Builder

	sb.WriteString("## Cycle State\n\n")
	if s.MaxCycles > 0 {
		sb.WriteString(fmt.Sprintf("- Cycle: %d of %d\n", s.Cycle, s.MaxCycles))
	} else {
		sb.WriteString(fmt.Sprintf("- Cycle: %d (unbounded run)\n", s.Cycle))
	}
	sb.WriteString(fmt.Sprintf("- Productive cycles so far: %d\n", s.ProductiveCycles))
	sb.WriteString(fmt.Sprintf("- Model: %s\n", s.Model))
	if s.DryRun {
		sb.WriteString("- DRY RUN: mutating actions will be logged, not executed\n")
	}
	sb.WriteString("\n## Current Permissions\n\n")
	sb.WriteString(fmt.Sprintf("- can_fetch_news: %v (%d fetched today)\n", s.NewsAllowed, s.NewsToday))
	sb.WriteString(fmt.Sprintf("- research_due: %v\n", s.ResearchDue))
	sb.WriteString(fmt.Sprintf("- can_run_analysis: %v\n", s.AnalysisAllowed))
	if s.CIHealth != "" {
		sb.WriteString(fmt.Sprintf("- ci: %s\n", s.CIHealth))
	}
	if len(s.Baselines) > 0 {
		sb.WriteString("\n## Expected Cadence\n\n")
		for _, b := range s.Baselines {
			sb.WriteString(fmt.Sprintf("- %s\n", b))
		}
	}

	s.renderBacklog(&sb)
	s.renderPRs(&sb)
	s.renderTelemetry(&sb)
	s.renderErrors(&sb)
	s.renderJournal(&sb)

	return sb.String()
}

func (s *Snapshot) renderBacklog(sb *strings.Builder) {
	sb.WriteString("\n## Open Backlog\n\n")
	if len(s.Backlog) == 0 {
		sb.WriteString("(empty)\n")
	}
	for _, is := range s.Backlog {
		age := is.Age(s.Now).Round(time.Hour)
		sb.WriteString(fmt.Sprintf("- #%d %s [%s] (open %s)\n", is.Number, is.Title, strings.Join(is.Labels, ", "), age))
	}
	if len(s.RecentClosed) > 0 {
		sb.WriteString("\n## Recently Closed\n\n")
		for _, is := range s.RecentClosed {
			sb.WriteString(fmt.Sprintf("- #%d %s [%s]\n", is.Number, is.Title, strings.Join(is.Labels, ", ")))
		}
	}
}

func (s *Snapshot) renderPRs(sb *strings.Builder) {
	if len(s.OpenPRs) == 0 && len(s.RecentMerged) == 0 {
		return
	}
	sb.WriteString("\n## Pull Requests\n\n")
	for _, pr := range s.OpenPRs {
		sb.WriteString(fmt.Sprintf("- open #%d %s (%s)\n", pr.Number, pr.Title, pr.Branch))
	}
	for _, pr := range s.RecentMerged {
		sb.WriteString(fmt.Sprintf("- merged #%d %s\n", pr.Number, pr.Title))
	}
}

func (s *Snapshot) renderTelemetry(sb *strings.Builder) {
	if len(s.Telemetry) == 0 {
		return
	}
	sb.WriteString("\n## Recent Cycles\n\n")
	for _, rec := range s.Telemetry {
		status := "idle"
		if rec.Productive {
			status = string(rec.YieldKind)
		}
		flag := ""
		if rec.ConductorFallback {
			flag = " fallback"
		}
		sb.WriteString(fmt.Sprintf("- cycle %d: %s, actions [%s]%s\n", rec.CycleNumber, status, strings.Join(rec.ConductorActions, ", "), flag))
	}

	freq := actionFrequency(s.Telemetry)
	sb.WriteString(fmt.Sprintf("\nAction frequency over the last %d cycles:\n", len(s.Telemetry)))
	for _, name := range AllActions {
		if n := freq[string(name)]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", name, n))
		}
	}
}

func (s *Snapshot) renderErrors(sb *strings.Builder) {
	if len(s.Errors) == 0 {
		return
	}
	sb.WriteString("\n## Recent Errors\n\n")
	for _, e := range s.Errors {
		sb.WriteString(fmt.Sprintf("- cycle %d %s/%s: %s\n", e.Cycle, e.Phase, e.Kind, e.Message))
	}
}

func (s *Snapshot) renderJournal(sb *strings.Builder) {
	if len(s.Journal) == 0 {
		return
	}
	sb.WriteString("\n## Your Notes From Previous Cycles\n\n")
	for _, e := range s.Journal {
		note := e.Notes
		if note == "" {
			note = e.Reasoning
		}
		sb.WriteString(fmt.Sprintf("- cycle %d: %s\n", e.Cycle, note))
	}
}

// actionFrequency counts planned actions across the telemetry window.
func actionFrequency(records []telemetry.CycleTelemetry) map[string]int {
	freq := make(map[string]int)
	for _, rec := range records {
		for _, name := range rec.ConductorActions {
			freq[name]++
		}
	}
	return freq
}
