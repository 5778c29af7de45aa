package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autogov/internal/agent"
	"autogov/internal/cabinet"
	"autogov/internal/conductor"
	"autogov/internal/logging"
	"autogov/internal/publish"
	"autogov/internal/scouts"
	"autogov/internal/telemetry"
	"autogov/internal/tracker"
)

// dispatchOutcome accumulates what a plan's execution produced.
type dispatchOutcome struct {
	yield  telemetry.YieldKind
	halted bool
}

// noteYield upgrades the cycle yield. pr_merged outranks
// analysis_published outranks none.
func (o *dispatchOutcome) noteYield(kind telemetry.YieldKind) {
	if kind == telemetry.YieldPRMerged || o.yield == telemetry.YieldNone {
		o.yield = kind
	}
}

// dispatch executes the plan's actions in order, one at a time. Every
// action leaves a phase record; a failed action never stops the plan,
// only halt, skip_cycle and shutdown do.
func (e *Engine) dispatch(ctx context.Context, cycle int, plan *conductor.Plan, rec *telemetry.CycleTelemetry) dispatchOutcome {
	out := dispatchOutcome{yield: telemetry.YieldNone}
	for _, action := range plan.Actions {
		if ctx.Err() != nil {
			rec.Phases = append(rec.Phases, telemetry.CyclePhaseResult{
				Phase:   string(action.Name),
				Skipped: true,
				Detail:  "shutdown requested",
			})
			break
		}
		rec.Phases = append(rec.Phases, e.execute(ctx, cycle, action, &out))
		if out.halted {
			break
		}
		if action.Name == conductor.ActionSkipCycle {
			break
		}
	}
	return out
}

// execute runs one action and captures its phase record. Dry-run skips
// everything that is not read-only.
func (e *Engine) execute(ctx context.Context, cycle int, action conductor.Action, out *dispatchOutcome) telemetry.CyclePhaseResult {
	name := string(action.Name)
	logging.Engine("action: %s", action)

	if e.cfg.Engine.DryRun && !action.Name.ReadOnly() {
		logging.Engine("dry-run: %s skipped", action)
		return telemetry.CyclePhaseResult{Phase: name, OK: true, Skipped: true, Detail: "dry-run"}
	}

	started := e.now()
	var (
		detail  string
		skipped bool
		err     error
	)
	switch action.Name {
	case conductor.ActionFetchNews:
		detail, skipped, err = e.runFetchNews(ctx)
	case conductor.ActionPropose:
		detail, skipped, err = e.runPropose(ctx, cycle)
	case conductor.ActionDebate:
		detail, skipped, err = e.runDebate(ctx)
	case conductor.ActionPickAndExecute:
		detail, skipped, err = e.runPick(ctx, action.IssueNumber, out)
	case conductor.ActionDirector:
		detail, err = e.runOversight(ctx, cycle, e.comp.Director, "project director")
	case conductor.ActionStrategicDirector:
		detail, err = e.runOversight(ctx, cycle, e.comp.Strategic, "strategic director")
	case conductor.ActionResearchScout:
		detail, skipped, err = e.runResearch(ctx)
	case conductor.ActionCooldown:
		err = e.sleep(ctx, time.Duration(action.Seconds)*time.Second)
		detail = fmt.Sprintf("slept %ds", action.Seconds)
	case conductor.ActionHalt:
		out.halted = true
		detail = "halt requested"
	case conductor.ActionFileIssue:
		detail, err = e.runFileIssue(ctx, action)
	case conductor.ActionSkipCycle:
		detail = "cycle skipped"
	default:
		err = fmt.Errorf("unknown action %q", action.Name)
	}

	res := telemetry.CyclePhaseResult{
		Phase:      name,
		OK:         err == nil,
		Skipped:    skipped,
		Detail:     detail,
		DurationMs: e.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		kind := errorKind(err)
		res.Error = &telemetry.PhaseError{Kind: kind, Message: err.Error()}
		e.appendError(cycle, name, kind, err)
		logging.EngineError("%s failed (%s): %v", name, kind, err)
	}
	return res
}

func (e *Engine) runFetchNews(ctx context.Context) (string, bool, error) {
	if e.cfg.Engine.SkipAnalysis {
		return "analysis intake disabled", true, nil
	}
	now := e.now().UTC()
	if !e.comp.News.Due(now) {
		return "news scout already ran today", true, nil
	}
	nums, err := e.comp.News.Run(ctx, now)
	if err != nil {
		return "", false, err
	}
	if len(nums) == 0 {
		return "no new decisions found", false, nil
	}
	return "filed " + issueRefs(nums), false, nil
}

func (e *Engine) runResearch(ctx context.Context) (string, bool, error) {
	if e.cfg.Engine.SkipResearch {
		return "research disabled", true, nil
	}
	now := e.now().UTC()
	if !e.comp.Research.Due(now) {
		return "research interval not elapsed", true, nil
	}
	nums, err := e.comp.Research.Run(ctx, now)
	if err != nil {
		return "", false, err
	}
	if len(nums) == 0 {
		return "nothing worth proposing", false, nil
	}
	return "filed " + issueRefs(nums), false, nil
}

func (e *Engine) runPropose(ctx context.Context, cycle int) (string, bool, error) {
	if e.cfg.Engine.SkipImprove {
		return "self-improvement disabled", true, nil
	}
	nums, err := e.comp.Proposer.Run(ctx, e.report(ctx, cycle))
	if err != nil {
		return "", false, err
	}
	if len(nums) == 0 {
		return "no proposal filed", false, nil
	}
	return "proposed " + issueRefs(nums), false, nil
}

func (e *Engine) runOversight(ctx context.Context, cycle int, runner OversightRunner, who string) (string, error) {
	nums, err := runner.Run(ctx, e.report(ctx, cycle))
	if err != nil {
		return "", err
	}
	if len(nums) == 0 {
		return who + " filed nothing", nil
	}
	return who + " filed " + issueRefs(nums), nil
}

func (e *Engine) runDebate(ctx context.Context) (string, bool, error) {
	if e.cfg.Engine.SkipImprove {
		return "self-improvement disabled", true, nil
	}
	outcomes, err := e.comp.Debate.Run(ctx)
	if err != nil {
		return "", false, err
	}
	if len(outcomes) == 0 {
		return "no proposals waiting", false, nil
	}
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, o.String())
		if o.Err != nil {
			continue
		}
		if err := e.comp.Transparency.RecordSuggestion(publish.SuggestionRecord{
			Time:     e.now().UTC(),
			Issue:    o.Issue,
			Title:    o.Title,
			Accepted: o.Accepted,
			Strength: o.Strength,
			Weakness: o.Weakness,
			Bypass:   o.Bypassed,
		}); err != nil {
			logging.EngineError("suggestion record for #%d: %v", o.Issue, err)
		}
	}
	return strings.Join(parts, "; "), false, nil
}

func (e *Engine) runFileIssue(ctx context.Context, action conductor.Action) (string, error) {
	num, err := e.comp.Tracker.CreateIssue(ctx, action.Title, action.Description,
		[]string{tracker.LabelProposed, tracker.LabelTaskCodeChange})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("filed #%d: %s", num, action.Title), nil
}

// runPick re-reads the chosen issue and executes it. The issue must
// still be in the backlog; anything else is a state conflict, not a
// crash, because humans edit labels concurrently.
func (e *Engine) runPick(ctx context.Context, number int, out *dispatchOutcome) (string, bool, error) {
	issue, err := e.comp.Tracker.GetIssue(ctx, number)
	if err != nil {
		return "", false, err
	}
	if issue.State != "open" || issue.StateLabel() != tracker.LabelBacklog {
		return "", false, &tracker.Error{
			Kind: tracker.KindStateConflict,
			Op:   "pick",
			Err:  fmt.Errorf("issue #%d is no longer a backlog item", number),
		}
	}
	if issue.HasLabel(tracker.LabelTaskAnalysis) {
		return e.executeAnalysis(ctx, issue, out)
	}
	return e.executeImprovement(ctx, issue, out)
}

// executeAnalysis runs the cabinet pipeline for one analysis issue and
// publishes the result. The throttle is consulted before the issue is
// touched so a throttled pick leaves it exactly as found.
func (e *Engine) executeAnalysis(ctx context.Context, issue *tracker.Issue, out *dispatchOutcome) (string, bool, error) {
	if e.cfg.Engine.SkipAnalysis {
		return "analysis disabled", true, nil
	}
	if !e.comp.Throttle.Allowed(e.now().UTC()) {
		return fmt.Sprintf("analysis throttled, #%d left in backlog", issue.Number), true, nil
	}

	if err := e.comp.Tracker.Transition(ctx, issue, tracker.LabelInProgress); err != nil {
		return "", false, err
	}

	d, err := scouts.DecisionFromBody(issue.Body)
	if err != nil {
		e.failIssue(ctx, issue, "intake", err)
		return "", false, fmt.Errorf("decision payload in #%d: %w", issue.Number, err)
	}

	res, err := e.comp.Analyzer.Analyze(ctx, *d)
	if err != nil {
		e.failIssue(ctx, issue, failingPhase(err), err)
		return "", false, err
	}
	res.IssueNumber = issue.Number

	if err := e.comp.Store.SaveResult(res); err != nil {
		e.failIssue(ctx, issue, "persist", err)
		return "", false, err
	}
	if err := e.comp.Throttle.Record(e.now().UTC()); err != nil {
		logging.EngineError("throttle record failed: %v", err)
	}

	if err := e.comp.Tracker.Transition(ctx, issue, tracker.LabelDone); err != nil {
		return "", false, err
	}
	if err := e.comp.Tracker.Comment(ctx, issue.Number, analysisComment(res)); err != nil {
		logging.EngineError("analysis comment on #%d: %v", issue.Number, err)
	}
	out.noteYield(telemetry.YieldAnalysisPublished)

	// Post-publication steps observe the result, never gate it.
	if _, err := e.comp.Editorial.Review(ctx, res); err != nil {
		logging.EngineError("editorial review of %s: %v", res.Decision.ID, err)
	}
	if err := e.comp.Announcer.Announce(ctx, res); err != nil {
		logging.EngineError("announce of %s: %v", res.Decision.ID, err)
	}

	return "published analysis " + res.Decision.ID, false, nil
}

// executeImprovement hands one code-change issue to the PR workflow.
func (e *Engine) executeImprovement(ctx context.Context, issue *tracker.Issue, out *dispatchOutcome) (string, bool, error) {
	if e.cfg.Engine.SkipImprove {
		return "self-improvement disabled", true, nil
	}
	if err := e.comp.Tracker.Transition(ctx, issue, tracker.LabelInProgress); err != nil {
		return "", false, err
	}

	res, err := e.comp.Improver.Execute(ctx, issue)
	if err != nil {
		// The workflow owns terminal transitions on its normal paths; an
		// error means it could not get there, so close out here.
		e.failIssue(ctx, issue, "improvement", err)
		return "", false, err
	}
	if res.Merged {
		out.noteYield(telemetry.YieldPRMerged)
		if err := e.comp.Transparency.RecordMerge(publish.MergeRecord{
			Time:   e.now().UTC(),
			Issue:  issue.Number,
			PR:     res.PRNumber,
			Branch: res.Branch,
			Title:  issue.Title,
			Rounds: res.Rounds,
		}); err != nil {
			logging.EngineError("merge record for #%d: %v", issue.Number, err)
		}
		return fmt.Sprintf("merged PR #%d in %d round(s)", res.PRNumber, res.Rounds), false, nil
	}
	if res.Exhausted {
		return fmt.Sprintf("review rounds exhausted on #%d, PR closed unmerged", issue.Number), false, nil
	}
	return fmt.Sprintf("no merge for #%d", issue.Number), false, nil
}

// failIssue moves an in-progress issue to failed and names the phase
// that broke. Errors here are logged, not returned; the cause that got
// us here matters more.
func (e *Engine) failIssue(ctx context.Context, issue *tracker.Issue, phase string, cause error) {
	if err := e.comp.Tracker.Transition(ctx, issue, tracker.LabelFailed); err != nil {
		logging.EngineError("failed transition for #%d: %v", issue.Number, err)
	}
	msg := fmt.Sprintf("Execution failed during %s: %v", phase, cause)
	if err := e.comp.Tracker.Comment(ctx, issue.Number, msg); err != nil {
		logging.EngineError("failure comment on #%d: %v", issue.Number, err)
	}
}

// failingPhase names the pipeline stage for the issue comment.
func failingPhase(err error) string {
	var empty *cabinet.AnalysisEmptyError
	if errors.As(err, &empty) {
		return "ministry assessments"
	}
	var ae *agent.Error
	if errors.As(err, &ae) && ae.Role != "" {
		return string(ae.Role)
	}
	return "analysis"
}

// errorKind classifies an error for telemetry.
func errorKind(err error) string {
	if k := agent.KindOf(err); k != "" {
		return string(k)
	}
	if k := tracker.KindOf(err); k != "" {
		return string(k)
	}
	var empty *cabinet.AnalysisEmptyError
	if errors.As(err, &empty) {
		return "analysis_empty"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func issueRefs(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("#%d", n)
	}
	return strings.Join(parts, ", ")
}

func analysisComment(res *cabinet.SessionResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analysis published as `%s`.\n\n", res.Decision.ID))
	sb.WriteString(fmt.Sprintf("- Ministries: %d, average score %.1f/10\n", len(res.Assessments), publish.AverageScore(res.Assessments)))
	if res.Parliament != nil {
		sb.WriteString(fmt.Sprintf("- Parliament verdict: %s\n", res.Parliament.OverallVerdict))
	}
	if res.Critic != nil {
		sb.WriteString(fmt.Sprintf("- Critic decision score: %d/10\n", res.Critic.DecisionScore))
	}
	if res.CounterProposal != nil {
		sb.WriteString(fmt.Sprintf("- Counter-proposal: %s\n", res.CounterProposal.Title))
	}
	return sb.String()
}
