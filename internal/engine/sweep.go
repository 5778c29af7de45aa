package engine

import (
	"context"

	"autogov/internal/logging"
	"autogov/internal/publish"
	"autogov/internal/tracker"
)

// sweepOverrides honors human edits before planning. Two cases: an open
// issue still carrying rejected means a human reopened it, so it
// returns to the backlog as a human suggestion; an open proposal
// already carrying human-suggestion skips the debate queue. Both leave
// a transparency record. Skipped in dry-run.
func (e *Engine) sweepOverrides(ctx context.Context) {
	if e.cfg.Engine.DryRun {
		return
	}
	e.sweepReopened(ctx)
	e.sweepEndorsed(ctx)
}

// sweepReopened handles reopened rejections. The rejected label is
// terminal for the engine's own state machine, so this path edits
// labels directly: the human reopening the issue is the authority.
func (e *Engine) sweepReopened(ctx context.Context) {
	reopened, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelRejected)
	if err != nil {
		logging.EngineError("override sweep (rejected): %v", err)
		return
	}
	for i := range reopened {
		is := &reopened[i]
		if err := e.comp.Tracker.RemoveLabels(ctx, is.Number, tracker.LabelRejected); err != nil {
			logging.EngineError("override #%d: %v", is.Number, err)
			continue
		}
		if err := e.comp.Tracker.AddLabels(ctx, is.Number, tracker.LabelBacklog, tracker.LabelHumanSuggestion); err != nil {
			logging.EngineError("override #%d: %v", is.Number, err)
			continue
		}
		if err := e.comp.Tracker.Comment(ctx, is.Number, "Reopened by a human. Returning this to the backlog as a human suggestion."); err != nil {
			logging.EngineError("override comment on #%d: %v", is.Number, err)
		}
		logging.Engine("override: reopened rejection #%d moved to backlog", is.Number)
		if err := e.comp.Transparency.RecordOverride(publish.OverrideRecord{
			Time:   e.now().UTC(),
			Issue:  is.Number,
			Title:  is.Title,
			Action: "reopened_rejection",
			Detail: "moved to backlog with human-suggestion",
		}); err != nil {
			logging.EngineError("override record for #%d: %v", is.Number, err)
		}
	}
}

// sweepEndorsed promotes human-endorsed proposals eagerly rather than
// waiting for the next debate action.
func (e *Engine) sweepEndorsed(ctx context.Context) {
	proposed, err := e.comp.Tracker.ListOpenIssues(ctx, tracker.LabelProposed)
	if err != nil {
		logging.EngineError("override sweep (proposed): %v", err)
		return
	}
	for i := range proposed {
		is := &proposed[i]
		if !is.HasLabel(tracker.LabelHumanSuggestion) {
			continue
		}
		if err := e.comp.Tracker.Transition(ctx, is, tracker.LabelBacklog); err != nil {
			logging.EngineError("override #%d: %v", is.Number, err)
			continue
		}
		if err := e.comp.Tracker.Comment(ctx, is.Number, "Promoted to the backlog without debate: endorsed by a human."); err != nil {
			logging.EngineError("override comment on #%d: %v", is.Number, err)
		}
		logging.Engine("override: endorsed proposal #%d moved to backlog", is.Number)
		if err := e.comp.Transparency.RecordOverride(publish.OverrideRecord{
			Time:   e.now().UTC(),
			Issue:  is.Number,
			Title:  is.Title,
			Action: "endorsed_proposal",
			Detail: "promoted to backlog without debate",
		}); err != nil {
			logging.EngineError("override record for #%d: %v", is.Number, err)
		}
	}
}

// checkBreaker runs the circuit breaker over recent telemetry. Filed
// issues surface in the very next snapshot's backlog. Skipped in
// dry-run since it creates issues.
func (e *Engine) checkBreaker(ctx context.Context, cycle int) {
	if e.cfg.Engine.DryRun {
		return
	}
	filed, err := e.comp.Breaker.Check(ctx)
	if err != nil {
		logging.EngineError("breaker check failed: %v", err)
		e.appendError(cycle, "breaker", "breaker_error", err)
		return
	}
	for _, n := range filed {
		logging.Engine("breaker filed stability issue #%d", n)
	}
}
