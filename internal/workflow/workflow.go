package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autogov/internal/agent"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// Tracker is the slice of the tracker client the workflow needs.
type Tracker interface {
	CreateBranch(ctx context.Context, name string) error
	FindPRForBranch(ctx context.Context, branch string) (*tracker.PullRequest, error)
	ListPRComments(ctx context.Context, number int) ([]tracker.Comment, error)
	MergePR(ctx context.Context, number int) error
	ClosePR(ctx context.Context, number int, comment string) error
	Comment(ctx context.Context, number int, body string) error
	Transition(ctx context.Context, issue *tracker.Issue, target string) error
	BaseBranch() string
}

// Result summarizes one workflow execution.
type Result struct {
	IssueNumber int
	PRNumber    int
	Branch      string
	Rounds      int
	Merged      bool
	Exhausted   bool
}

// Workflow runs the bounded coder/reviewer loop for one issue. The
// reviewer never receives write tools and the merge is performed here,
// by the engine's tracker credentials, never by the coder.
type Workflow struct {
	invoker   agent.Invoker
	prompts   *agent.PromptStore
	tracker   Tracker
	workspace string
	maxRounds int

	now func() time.Time
}

// New wires the workflow. workspace is the checkout the coder and
// reviewer operate in.
func New(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, workspace string, maxRounds int) *Workflow {
	if maxRounds < 1 {
		maxRounds = 3
	}
	return &Workflow{
		invoker:   invoker,
		prompts:   prompts,
		tracker:   tr,
		workspace: workspace,
		maxRounds: maxRounds,
		now:       time.Now,
	}
}

// Execute runs the issue through coding and review until merged or the
// round cap is spent. The caller has already marked the issue
// in-progress; Execute owns the terminal transition.
func (w *Workflow) Execute(ctx context.Context, issue *tracker.Issue) (*Result, error) {
	branch := BranchName(issue.Title)
	if err := w.tracker.CreateBranch(ctx, branch); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branch, err)
	}
	logging.Workflow("issue #%d: working on branch %s", issue.Number, branch)

	result := &Result{IssueNumber: issue.Number, Branch: branch}
	feedback := ""

	for round := 1; round <= w.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Rounds = round
		logging.Workflow("issue #%d: round %d of %d", issue.Number, round, w.maxRounds)

		if err := w.runCoder(ctx, issue, branch, round, feedback); err != nil {
			logging.WorkflowError("issue #%d: coder failed in round %d: %v", issue.Number, round, err)
			feedback = fmt.Sprintf("The previous coding attempt failed before completing: %v\nPick up from the current state of the branch.", err)
			continue
		}

		pr, err := w.tracker.FindPRForBranch(ctx, branch)
		if err != nil {
			return nil, fmt.Errorf("find PR for %s: %w", branch, err)
		}
		if pr == nil {
			logging.WorkflowError("issue #%d: no PR on %s after round %d", issue.Number, branch, round)
			feedback = fmt.Sprintf("No open pull request was found for branch %s. Commit your work, push the branch, and open the PR before finishing.", branch)
			continue
		}
		result.PRNumber = pr.Number

		verdict, body := w.review(ctx, issue, pr)
		if verdict == VerdictApproved {
			if err := w.tracker.MergePR(ctx, pr.Number); err != nil {
				return nil, fmt.Errorf("merge PR #%d: %w", pr.Number, err)
			}
			if err := w.tracker.Transition(ctx, issue, tracker.LabelDone); err != nil {
				logging.WorkflowError("issue #%d: done transition failed: %v", issue.Number, err)
			}
			if err := w.tracker.Comment(ctx, issue.Number, fmt.Sprintf("Merged PR #%d after %d round(s) of review.", pr.Number, round)); err != nil {
				logging.WorkflowError("issue #%d: close-out comment failed: %v", issue.Number, err)
			}
			result.Merged = true
			logging.Workflow("issue #%d: PR #%d merged in round %d", issue.Number, pr.Number, round)
			return result, nil
		}
		feedback = body
	}

	return w.exhaust(ctx, issue, result)
}

// review spawns the reviewer and reads its verdict, failing closed: a
// reviewer error or a missing marker both count as changes requested.
func (w *Workflow) review(ctx context.Context, issue *tracker.Issue, pr *tracker.PullRequest) (Verdict, string) {
	reviewStart := w.now()

	if err := w.runReviewer(ctx, issue, pr); err != nil {
		logging.WorkflowError("issue #%d: reviewer failed on PR #%d: %v", issue.Number, pr.Number, err)
		return VerdictChangesRequested, fmt.Sprintf("The review run failed: %v\nAssume the changes were not acceptable and tighten the implementation.", err)
	}

	comments, err := w.tracker.ListPRComments(ctx, pr.Number)
	if err != nil {
		logging.WorkflowError("issue #%d: listing PR #%d comments failed: %v", issue.Number, pr.Number, err)
		return VerdictChangesRequested, "The reviewer's comments could not be read. Re-verify the change end to end."
	}

	verdict, body, ok := ExtractVerdict(comments, reviewStart)
	if !ok {
		logging.WorkflowError("issue #%d: reviewer posted no verdict on PR #%d", issue.Number, pr.Number)
		return VerdictChangesRequested, "The reviewer did not post a verdict. Re-check the requirements and harden the change."
	}
	return verdict, body
}

// exhaust closes out an issue whose round cap is spent: the PR is closed
// unmerged and the issue goes to failed.
func (w *Workflow) exhaust(ctx context.Context, issue *tracker.Issue, result *Result) (*Result, error) {
	result.Exhausted = true
	logging.Workflow("issue #%d: %d rounds exhausted without a merge", issue.Number, w.maxRounds)

	if result.PRNumber != 0 {
		if err := w.tracker.ClosePR(ctx, result.PRNumber, fmt.Sprintf("Closing unmerged: %d review rounds exhausted for issue #%d.", w.maxRounds, issue.Number)); err != nil {
			logging.WorkflowError("issue #%d: closing PR #%d failed: %v", issue.Number, result.PRNumber, err)
		}
	}
	if err := w.tracker.Transition(ctx, issue, tracker.LabelFailed); err != nil {
		return result, fmt.Errorf("failed transition: %w", err)
	}
	if err := w.tracker.Comment(ctx, issue.Number, fmt.Sprintf("Abandoned after %d review round(s) without an approved merge.", w.maxRounds)); err != nil {
		logging.WorkflowError("issue #%d: exhaustion comment failed: %v", issue.Number, err)
	}
	return result, nil
}

func (w *Workflow) runCoder(ctx context.Context, issue *tracker.Issue, branch string, round int, feedback string) error {
	_, err := w.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleCoder,
		SystemPrompt: w.prompts.ForRole(agent.RoleCoder),
		UserPrompt:   coderPrompt(issue, branch, w.tracker.BaseBranch(), round, feedback),
		Dir:          w.workspace,
	})
	return err
}

func (w *Workflow) runReviewer(ctx context.Context, issue *tracker.Issue, pr *tracker.PullRequest) error {
	_, err := w.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleReviewer,
		SystemPrompt: w.prompts.ForRole(agent.RoleReviewer),
		UserPrompt:   reviewerPrompt(issue, pr),
		Dir:          w.workspace,
	})
	return err
}

func coderPrompt(issue *tracker.Issue, branch, base string, round int, feedback string) string {
	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(fmt.Sprintf("Issue #%d: %s\n\n%s\n\n", issue.Number, issue.Title, issue.Body))
	sb.WriteString("## Ground Rules\n\n")
	sb.WriteString(fmt.Sprintf("- Work on branch `%s` (already created from `%s`). Never commit to `%s` directly.\n", branch, base, base))
	sb.WriteString("- Run the project's build and tests locally; do not push until they pass.\n")
	sb.WriteString(fmt.Sprintf("- Commit, push the branch, and open a pull request against `%s` whose body contains `Closes #%d`.\n", base, issue.Number))
	sb.WriteString("- Never merge the pull request yourself.\n")
	if round > 1 && feedback != "" {
		sb.WriteString("\n## Feedback From the Previous Round\n\n")
		sb.WriteString(feedback)
		sb.WriteString("\n\nAddress every point, push new commits to the same branch, and make sure the PR is open.\n")
	}
	return sb.String()
}

func reviewerPrompt(issue *tracker.Issue, pr *tracker.PullRequest) string {
	var sb strings.Builder
	sb.WriteString("## Review Request\n\n")
	sb.WriteString(fmt.Sprintf("Pull request #%d (branch `%s`) implements issue #%d: %s\n\n", pr.Number, pr.Branch, issue.Number, issue.Title))
	sb.WriteString("## Instructions\n\n")
	sb.WriteString(fmt.Sprintf("- Inspect the diff (`gh pr diff %d`) and the surrounding code. You have no write access; do not attempt to edit anything.\n", pr.Number))
	sb.WriteString("- Judge correctness, test coverage, and fit with the existing style.\n")
	sb.WriteString(fmt.Sprintf("- Post exactly one review comment with `gh pr comment %d` whose last line is either `%s` or `%s`.\n", pr.Number, markerApproved, markerChangesRequested))
	sb.WriteString("- If requesting changes, list each required change concretely.\n")
	return sb.String()
}
