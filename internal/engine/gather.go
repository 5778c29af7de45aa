package engine

import (
	"context"
	"fmt"
	"time"

	"autogov/internal/conductor"
	"autogov/internal/logging"
	"autogov/internal/oversight"
	"autogov/internal/tracker"
)

// gather assembles the planner's snapshot from fresh tracker state and
// the local journals. Tracker failures degrade the snapshot instead of
// aborting the cycle; the conductor plans with what it can see.
func (e *Engine) gather(ctx context.Context, cycle int) *conductor.Snapshot {
	now := e.now().UTC()
	eng := e.cfg.Engine
	lim := e.cfg.Limits

	snap := &conductor.Snapshot{
		Cycle:            cycle,
		MaxCycles:        eng.MaxCycles,
		ProductiveCycles: e.productive,
		DryRun:           eng.DryRun,
		Model:            eng.Model,
		Baselines:        e.baselines(),
		Now:              now,
	}

	var err error
	if snap.Telemetry, err = e.comp.Journal.LastCycles(lim.TelemetryContext); err != nil {
		logging.EngineError("telemetry context unavailable: %v", err)
	}
	if snap.Errors, err = e.comp.Journal.LastErrors(lim.ErrorContext); err != nil {
		logging.EngineError("error context unavailable: %v", err)
	}
	if snap.Journal, err = e.comp.CondJournal.Last(lim.JournalContext); err != nil {
		logging.EngineError("conductor journal unavailable: %v", err)
	}

	backlog, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelBacklog)
	if err != nil {
		logging.EngineError("backlog listing failed: %v", err)
	}
	proposed, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelProposed)
	if err != nil {
		logging.EngineError("proposed listing failed: %v", err)
	}
	snap.Backlog = append(backlog, proposed...)
	if snap.RecentClosed, err = e.comp.Tracker.ListClosedIssues(ctx, 10); err != nil {
		logging.EngineError("closed listing failed: %v", err)
	}
	if snap.OpenPRs, err = e.comp.Tracker.ListPRs(ctx, "open", 10); err != nil {
		logging.EngineError("open PR listing failed: %v", err)
	}
	if snap.RecentMerged, err = e.comp.Tracker.ListPRs(ctx, "merged", 5); err != nil {
		logging.EngineError("merged PR listing failed: %v", err)
	}

	snap.NewsAllowed = !eng.SkipAnalysis && e.comp.News.Due(now)
	snap.NewsToday = countAnalysesToday(append(snap.Backlog, snap.RecentClosed...), now)
	snap.ResearchDue = !eng.SkipResearch && e.comp.Research.Due(now)
	snap.AnalysisAllowed = !eng.SkipAnalysis && e.comp.Throttle.Allowed(now)

	if runs, err := e.comp.Tracker.ListCIRuns(ctx, 5); err != nil {
		logging.EngineError("ci listing failed: %v", err)
		snap.CIHealth = "unavailable"
	} else {
		snap.CIHealth = tracker.CIHealth(runs)
	}

	return snap
}

// baselines renders the configured cadences so the conductor can see
// frequency skew next to the actual counts.
func (e *Engine) baselines() []string {
	eng := e.cfg.Engine
	lim := e.cfg.Limits
	return []string{
		fmt.Sprintf("fetch_news: at most once per day, up to %d decisions", lim.NewsPerDay),
		fmt.Sprintf("research_scout: every %d days, up to %d proposals", lim.ResearchIntervalDays, lim.ResearchMaxIssues),
		fmt.Sprintf("analysis: at most %d per day, at least %s apart", lim.AnalysesPerDay, lim.AnalysisMinGap),
		fmt.Sprintf("propose: up to %d per run; debate: up to %d per run", lim.ProposeMaxPerRun, lim.DebateMaxPerRun),
		fmt.Sprintf("director: roughly every %d productive cycles, strategic_director every %d", eng.DirectorInterval, eng.StrategicInterval),
	}
}

// report builds the operating picture for oversight runs. It re-queries
// the tracker rather than reusing the snapshot; directors run rarely
// and deserve current state.
func (e *Engine) report(ctx context.Context, cycle int) *oversight.Report {
	rep := &oversight.Report{Cycle: cycle, ProductiveCycles: e.productive}

	if errs, err := e.comp.Journal.LastErrors(e.cfg.Limits.ErrorContext); err == nil {
		for _, en := range errs {
			rep.RecentErrors = append(rep.RecentErrors, fmt.Sprintf("cycle %d %s/%s: %s", en.Cycle, en.Phase, en.Kind, en.Message))
		}
	}
	if backlog, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelBacklog); err == nil {
		rep.Backlog = backlog
	} else {
		logging.EngineError("oversight backlog listing failed: %v", err)
	}
	if runs, err := e.comp.Tracker.ListCIRuns(ctx, 5); err == nil {
		rep.CIHealth = tracker.CIHealth(runs)
	}
	for _, label := range []string{tracker.LabelGapContent, tracker.LabelGapTechnical} {
		gaps, err := e.comp.Tracker.ListOpenIssues(ctx, label)
		if err != nil {
			logging.EngineError("gap listing for %s failed: %v", label, err)
			continue
		}
		for i := range gaps {
			rep.GapTitles = append(rep.GapTitles, gaps[i].Title)
		}
	}
	return rep
}

func countAnalysesToday(issues []tracker.Issue, now time.Time) int {
	day := now.UTC().Format("2006-01-02")
	n := 0
	for i := range issues {
		if issues[i].HasLabel(tracker.LabelTaskAnalysis) && issues[i].CreatedAt.UTC().Format("2006-01-02") == day {
			n++
		}
	}
	return n
}
