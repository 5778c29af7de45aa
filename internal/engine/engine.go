// Package engine is the composition root: the control loop that
// gathers a state snapshot, asks the conductor for a plan, dispatches
// the plan's actions, records telemetry and cools down. One cycle at a
// time; parallelism lives inside the subsystems, never across them.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"autogov/internal/cabinet"
	"autogov/internal/conductor"
	"autogov/internal/config"
	"autogov/internal/debate"
	"autogov/internal/logging"
	"autogov/internal/oversight"
	"autogov/internal/publish"
	"autogov/internal/telemetry"
	"autogov/internal/tracker"
	"autogov/internal/workflow"
)

// Tracker is the tracker surface the engine itself consumes. The
// subsystems declare their own narrower interfaces.
type Tracker interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error)
	ListClosedIssues(ctx context.Context, limit int, labels ...string) ([]tracker.Issue, error)
	GetIssue(ctx context.Context, number int) (*tracker.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (int, error)
	AddLabels(ctx context.Context, number int, labels ...string) error
	RemoveLabels(ctx context.Context, number int, labels ...string) error
	Comment(ctx context.Context, number int, body string) error
	Transition(ctx context.Context, issue *tracker.Issue, target string) error
	ListPRs(ctx context.Context, state string, limit int) ([]tracker.PullRequest, error)
	ListCIRuns(ctx context.Context, limit int) ([]tracker.CIRun, error)
	EnsureLabels(ctx context.Context) error
}

// Planner produces one plan per cycle; the bool reports fallback.
type Planner interface {
	Plan(ctx context.Context, snap *conductor.Snapshot) (*conductor.Plan, bool)
}

// Scout is the shared shape of the news and research scouts.
type Scout interface {
	Due(now time.Time) bool
	Run(ctx context.Context, now time.Time) ([]int, error)
}

// OversightRunner is the shared shape of the proposer and directors.
type OversightRunner interface {
	Run(ctx context.Context, rep *oversight.Report) ([]int, error)
}

// Debater triages the proposed queue.
type Debater interface {
	Run(ctx context.Context) ([]debate.Outcome, error)
}

// Analyzer runs the full analysis pipeline for one decision.
type Analyzer interface {
	Analyze(ctx context.Context, d cabinet.Decision) (*cabinet.SessionResult, error)
}

// Improver runs the coder/reviewer workflow for one issue.
type Improver interface {
	Execute(ctx context.Context, issue *tracker.Issue) (*workflow.Result, error)
}

// Editor grades a published analysis.
type Editor interface {
	Review(ctx context.Context, res *cabinet.SessionResult) (*oversight.Review, error)
}

// ResultStore persists finished analyses.
type ResultStore interface {
	SaveResult(res *cabinet.SessionResult) error
}

// Throttle rate-limits analysis publication.
type Throttle interface {
	Allowed(now time.Time) bool
	Record(now time.Time) error
}

// Announcer posts publication notices.
type Announcer interface {
	Announce(ctx context.Context, res *cabinet.SessionResult) error
}

// Recorder keeps the transparency files.
type Recorder interface {
	RecordOverride(rec publish.OverrideRecord) error
	RecordSuggestion(rec publish.SuggestionRecord) error
	RecordMerge(rec publish.MergeRecord) error
}

// Breaker files stability issues for recurring failures.
type Breaker interface {
	Check(ctx context.Context) ([]int, error)
}

// Restarter replaces the process image after a merged PR.
type Restarter interface {
	Restart(ctx context.Context, cycle, productive int) error
}

// Components aggregates the engine's collaborators. cmd/autogov wires
// the real implementations; tests substitute fakes.
type Components struct {
	Tracker      Tracker
	Planner      Planner
	Journal      *telemetry.Journal
	CondJournal  *conductor.Journal
	Breaker      Breaker
	News         Scout
	Research     Scout
	Proposer     OversightRunner
	Debate       Debater
	Analyzer     Analyzer
	Improver     Improver
	Director     OversightRunner
	Strategic    OversightRunner
	Editorial    Editor
	Store        ResultStore
	Throttle     Throttle
	Announcer    Announcer
	Transparency Recorder
	Restarter    Restarter
}

// Engine owns the cycle loop. Within a cycle every collaborator gets
// fresh tracker state; nothing cached crosses a cycle boundary except
// the counters.
type Engine struct {
	cfg  *config.Config
	comp Components

	cycleOffset      int
	productiveOffset int

	// productive counts productive cycles across restarts; seeded from
	// productiveOffset at Run.
	productive     int
	halted         bool
	restartPending bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an Engine. The offsets carry counters across a self
// restart; a first boot passes zeros.
func New(cfg *config.Config, comp Components, cycleOffset, productiveOffset int) *Engine {
	return &Engine{
		cfg:              cfg,
		comp:             comp,
		cycleOffset:      cycleOffset,
		productiveOffset: productiveOffset,
		now:              time.Now,
		sleep:            sleepCtx,
	}
}

// Run executes cycles until the context is canceled, the cycle budget
// is spent, or the conductor halts. A non-nil error means a cycle
// crashed and the process should exit non-zero; everything milder is
// absorbed into telemetry.
func (e *Engine) Run(ctx context.Context) error {
	e.productive = e.productiveOffset
	e.bootstrap(ctx)

	for cycle := e.cycleOffset + 1; ; cycle++ {
		if ctx.Err() != nil {
			logging.Engine("shutdown requested, stopping before cycle %d", cycle)
			return nil
		}
		if e.cfg.Engine.MaxCycles > 0 && cycle > e.cfg.Engine.MaxCycles {
			logging.Engine("cycle budget %d spent, stopping", e.cfg.Engine.MaxCycles)
			return nil
		}

		rec, plan, err := e.runCycle(ctx, cycle)
		if err != nil {
			return err
		}
		if rec.Productive {
			e.productive++
		}

		if e.restartPending {
			e.restartPending = false
			if err := e.comp.Restarter.Restart(ctx, cycle, e.productive); err != nil {
				// Only reachable on failure; success never returns.
				logging.EngineError("restart aborted, continuing in place: %v", err)
				e.appendError(cycle, "restart", "restart_failed", err)
			}
		}
		if e.halted {
			logging.Engine("conductor halted the run after cycle %d", cycle)
			return nil
		}

		if err := e.coolDown(ctx, plan); err != nil {
			logging.Engine("shutdown requested during cooldown")
			return nil
		}
	}
}

// bootstrap runs the one-time startup work: label bootstrap and
// recovery of issues stranded in-progress by a previous crash. Both are
// skipped in dry-run.
func (e *Engine) bootstrap(ctx context.Context) {
	if e.cfg.Engine.DryRun {
		logging.Engine("dry-run: skipping label bootstrap and stale recovery")
		return
	}
	if err := e.comp.Tracker.EnsureLabels(ctx); err != nil {
		logging.EngineError("label bootstrap failed: %v", err)
	}
	e.recoverStale(ctx)
}

// recoverStale returns issues left in-progress by a dead process to the
// backlog. The loop guarantees at most one in-progress issue while it
// is alive, so anything found here is an orphan.
func (e *Engine) recoverStale(ctx context.Context) {
	stale, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelInProgress)
	if err != nil {
		logging.EngineError("stale recovery scan failed: %v", err)
		return
	}
	for i := range stale {
		is := &stale[i]
		if err := e.comp.Tracker.RemoveLabels(ctx, is.Number, tracker.LabelInProgress); err != nil {
			logging.EngineError("stale recovery of #%d: %v", is.Number, err)
			continue
		}
		if err := e.comp.Tracker.AddLabels(ctx, is.Number, tracker.LabelBacklog); err != nil {
			logging.EngineError("stale recovery of #%d: %v", is.Number, err)
			continue
		}
		if err := e.comp.Tracker.Comment(ctx, is.Number, "Returned to the backlog: a previous run stopped while this was in progress."); err != nil {
			logging.EngineError("stale recovery comment on #%d: %v", is.Number, err)
		}
		logging.Engine("recovered stale in-progress issue #%d", is.Number)
	}
}

// runCycle executes one full cycle under the crash guard. A panic is
// converted into partial telemetry, an error journal entry and a
// returned error; the caller exits non-zero so the supervisor decides
// what happens next.
func (e *Engine) runCycle(ctx context.Context, cycle int) (rec *telemetry.CycleTelemetry, plan *conductor.Plan, crashErr error) {
	rec = &telemetry.CycleTelemetry{
		CycleNumber: cycle,
		StartedAt:   e.now().UTC(),
		DryRun:      e.cfg.Engine.DryRun,
	}
	logging.Engine("=== cycle %d ===", cycle)
	logging.Audit().CycleStart(cycle)

	defer func() {
		if p := recover(); p != nil {
			rec.Partial = true
			rec.EndedAt = e.now().UTC()
			if err := e.comp.Journal.AppendCycle(rec); err != nil {
				logging.EngineError("partial telemetry append failed: %v", err)
			}
			e.appendError(cycle, "engine", "engine_crash", fmt.Errorf("%v", p))
			logging.EngineError("cycle %d crashed: %v\n%s", cycle, p, debug.Stack())
			crashErr = fmt.Errorf("cycle %d crashed: %v", cycle, p)
		}
	}()

	if err := e.comp.Journal.Prune(e.now()); err != nil {
		logging.EngineError("journal prune failed: %v", err)
	}
	e.sweepOverrides(ctx)
	e.checkBreaker(ctx, cycle)

	snap := e.gather(ctx, cycle)
	plan, fallback := e.comp.Planner.Plan(ctx, snap)
	rec.ConductorReasoning = plan.Reasoning
	rec.ConductorActions = plan.ActionNames()
	rec.ConductorFallback = fallback

	out := e.dispatch(ctx, cycle, plan, rec)
	rec.YieldKind = out.yield
	rec.Productive = out.yield != telemetry.YieldNone
	e.halted = out.halted
	e.restartPending = out.yield == telemetry.YieldPRMerged && !e.cfg.Engine.DryRun

	rec.EndedAt = e.now().UTC()
	if err := e.comp.Journal.AppendCycle(rec); err != nil {
		logging.EngineError("telemetry append failed: %v", err)
	}
	if err := e.comp.CondJournal.Append(conductor.JournalEntry{
		Cycle:     cycle,
		Time:      rec.EndedAt,
		Reasoning: plan.Reasoning,
		Actions:   plan.ActionNames(),
		Notes:     plan.NotesForNextCycle,
		Fallback:  fallback,
	}); err != nil {
		logging.EngineError("conductor journal append failed: %v", err)
	}

	logging.Audit().CycleEnd(cycle, rec.Productive, rec.EndedAt.Sub(rec.StartedAt).Milliseconds())
	logging.Engine("cycle %d done: yield=%s productive=%v", cycle, rec.YieldKind, rec.Productive)
	return rec, plan, nil
}

// coolDown sleeps between cycles: the longer of the configured floor
// and the conductor's suggestion, clamped to the configured ceiling.
func (e *Engine) coolDown(ctx context.Context, plan *conductor.Plan) error {
	seconds := e.cfg.Engine.CooldownSeconds
	if plan != nil && plan.SuggestedCooldownSeconds > seconds {
		seconds = plan.SuggestedCooldownSeconds
	}
	if ceil := e.cfg.Limits.CooldownMaxSeconds; seconds > ceil {
		seconds = ceil
	}
	if seconds <= 0 {
		return nil
	}
	logging.EngineDebug("cooling down %ds", seconds)
	return e.sleep(ctx, time.Duration(seconds)*time.Second)
}

// appendError journals one structured error entry.
func (e *Engine) appendError(cycle int, phase, kind string, err error) {
	entry := &telemetry.ErrorEntry{
		Timestamp: e.now().UTC(),
		Cycle:     cycle,
		Phase:     phase,
		Kind:      kind,
		Message:   err.Error(),
	}
	if jerr := e.comp.Journal.AppendError(entry); jerr != nil {
		logging.EngineError("error journal append failed: %v", jerr)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
