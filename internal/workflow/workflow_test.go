package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"autogov/internal/agent"
	"autogov/internal/tracker"
)

type fakeInvoker struct {
	mu      sync.Mutex
	calls   []agent.Invocation
	handler func(inv agent.Invocation) (*agent.Result, error)
}

func (f *fakeInvoker) Run(ctx context.Context, inv agent.Invocation) (*agent.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	return f.handler(inv)
}

func (f *fakeInvoker) roleCalls(role agent.Role) []agent.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []agent.Invocation
	for _, c := range f.calls {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

type fakeTracker struct {
	mu sync.Mutex

	createBranchErr error
	branches        []string

	pr      *tracker.PullRequest
	findErr error

	comments []tracker.Comment

	merged   []int
	mergeErr error

	closedPRs     map[int]string
	issueComments map[int][]string
	transitions   map[int][]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		closedPRs:     make(map[int]string),
		issueComments: make(map[int][]string),
		transitions:   make(map[int][]string),
	}
}

func (f *fakeTracker) CreateBranch(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, name)
	return f.createBranchErr
}

func (f *fakeTracker) FindPRForBranch(ctx context.Context, branch string) (*tracker.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pr, f.findErr
}

func (f *fakeTracker) ListPRComments(ctx context.Context, number int) ([]tracker.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tracker.Comment(nil), f.comments...), nil
}

func (f *fakeTracker) MergePR(ctx context.Context, number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merged = append(f.merged, number)
	return nil
}

func (f *fakeTracker) ClosePR(ctx context.Context, number int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedPRs[number] = comment
	return nil
}

func (f *fakeTracker) Comment(ctx context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issueComments[number] = append(f.issueComments[number], body)
	return nil
}

func (f *fakeTracker) Transition(ctx context.Context, issue *tracker.Issue, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[issue.Number] = append(f.transitions[issue.Number], target)
	return nil
}

func (f *fakeTracker) BaseBranch() string { return "main" }

func (f *fakeTracker) addComment(body string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, tracker.Comment{Author: "reviewer-bot", Body: body, CreatedAt: at})
}

func (f *fakeTracker) setPR(pr *tracker.PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pr = pr
}

var t0 = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func codeIssue() tracker.Issue {
	return tracker.Issue{
		Number: 41,
		Title:  "Improve retry logging",
		Body:   "Log each retry attempt with its delay.",
		State:  "open",
		Labels: []string{tracker.LabelInProgress, tracker.LabelTaskCodeChange},
	}
}

func testWorkflow(t *testing.T, ft *fakeTracker, handler func(inv agent.Invocation) (*agent.Result, error)) (*Workflow, *fakeInvoker) {
	t.Helper()
	prompts, err := agent.LoadPrompts(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	inv := &fakeInvoker{handler: handler}
	w := New(inv, prompts, ft, t.TempDir(), 3)
	w.now = func() time.Time { return t0 }
	return w, inv
}

// approvingHandler simulates a coder that opens a PR and a reviewer that
// approves it.
func approvingHandler(ft *fakeTracker) func(inv agent.Invocation) (*agent.Result, error) {
	return func(inv agent.Invocation) (*agent.Result, error) {
		switch inv.Role {
		case agent.RoleCoder:
			ft.setPR(&tracker.PullRequest{Number: 88, State: "open", Branch: "ai-dev/x"})
			return &agent.Result{Text: "done"}, nil
		case agent.RoleReviewer:
			ft.addComment("Looks solid.\nVERDICT: APPROVED", t0.Add(time.Minute))
			return &agent.Result{Text: "reviewed"}, nil
		}
		return nil, fmt.Errorf("unexpected role %s", inv.Role)
	}
}

func TestExecuteMergedFirstRound(t *testing.T) {
	ft := newFakeTracker()
	w, inv := testWorkflow(t, ft, approvingHandler(ft))
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Merged || result.Exhausted || result.Rounds != 1 || result.PRNumber != 88 {
		t.Errorf("result = %+v", result)
	}
	if len(ft.merged) != 1 || ft.merged[0] != 88 {
		t.Errorf("merged = %v", ft.merged)
	}
	if got := ft.transitions[41]; len(got) != 1 || got[0] != tracker.LabelDone {
		t.Errorf("transitions = %v, want [done]", got)
	}
	if len(ft.issueComments[41]) != 1 || !strings.Contains(ft.issueComments[41][0], "Merged PR #88") {
		t.Errorf("issue comments = %v", ft.issueComments[41])
	}
	if len(ft.branches) != 1 || !strings.HasPrefix(ft.branches[0], "ai-dev/improve-retry-logging-") {
		t.Errorf("branches = %v", ft.branches)
	}

	coder := inv.roleCalls(agent.RoleCoder)
	if len(coder) != 1 {
		t.Fatalf("coder spawned %d times, want 1", len(coder))
	}
	for _, want := range []string{"Closes #41", "Never merge", ft.branches[0]} {
		if !strings.Contains(coder[0].UserPrompt, want) {
			t.Errorf("coder prompt missing %q", want)
		}
	}
	reviewer := inv.roleCalls(agent.RoleReviewer)
	if len(reviewer) != 1 {
		t.Fatalf("reviewer spawned %d times, want 1", len(reviewer))
	}
	// The reviewer runs with the role's own tool set, which carries no
	// write or edit access.
	if reviewer[0].Tools != nil {
		t.Error("workflow must not widen the reviewer's tool set")
	}
	for _, tool := range agent.RoleReviewer.Tools() {
		if tool == agent.ToolWrite || tool == agent.ToolEdit {
			t.Errorf("reviewer tool set includes %s", tool)
		}
	}
}

func TestExecuteChangesRequestedThenMerged(t *testing.T) {
	ft := newFakeTracker()
	var reviews int
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		switch inv.Role {
		case agent.RoleCoder:
			ft.setPR(&tracker.PullRequest{Number: 90, State: "open"})
			return &agent.Result{Text: "done"}, nil
		case agent.RoleReviewer:
			reviews++
			if reviews == 1 {
				ft.addComment("Missing tests for the delay math.\nVERDICT: CHANGES_REQUESTED", t0.Add(time.Minute))
			} else {
				ft.addComment("Tests added.\nVERDICT: APPROVED", t0.Add(2*time.Minute))
			}
			return &agent.Result{Text: "reviewed"}, nil
		}
		return nil, fmt.Errorf("unexpected role %s", inv.Role)
	}
	w, inv := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Merged || result.Rounds != 2 {
		t.Errorf("result = %+v, want merge in round 2", result)
	}

	coder := inv.roleCalls(agent.RoleCoder)
	if len(coder) != 2 {
		t.Fatalf("coder spawned %d times, want 2", len(coder))
	}
	if !strings.Contains(coder[1].UserPrompt, "Missing tests for the delay math") {
		t.Error("second coder round missing reviewer feedback")
	}
	if !strings.Contains(coder[1].UserPrompt, "Feedback From the Previous Round") {
		t.Error("second coder round missing feedback section")
	}
}

func TestExecuteExhaustion(t *testing.T) {
	ft := newFakeTracker()
	var reviews int
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		switch inv.Role {
		case agent.RoleCoder:
			ft.setPR(&tracker.PullRequest{Number: 91, State: "open"})
			return &agent.Result{Text: "done"}, nil
		case agent.RoleReviewer:
			reviews++
			ft.addComment("Still not right.\nVERDICT: CHANGES_REQUESTED", t0.Add(time.Duration(reviews)*time.Minute))
			return &agent.Result{Text: "reviewed"}, nil
		}
		return nil, fmt.Errorf("unexpected role %s", inv.Role)
	}
	w, inv := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Merged || !result.Exhausted || result.Rounds != 3 {
		t.Errorf("result = %+v, want exhaustion after 3 rounds", result)
	}
	if len(ft.merged) != 0 {
		t.Errorf("merged = %v, want none", ft.merged)
	}
	if _, ok := ft.closedPRs[91]; !ok {
		t.Error("exhausted PR not closed")
	}
	if got := ft.transitions[41]; len(got) != 1 || got[0] != tracker.LabelFailed {
		t.Errorf("transitions = %v, want [failed]", got)
	}
	if len(inv.roleCalls(agent.RoleCoder)) != 3 {
		t.Errorf("coder spawned %d times, want 3", len(inv.roleCalls(agent.RoleCoder)))
	}
}

func TestExecuteMissingVerdictFailsClosed(t *testing.T) {
	ft := newFakeTracker()
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		if inv.Role == agent.RoleCoder {
			ft.setPR(&tracker.PullRequest{Number: 92, State: "open"})
		}
		// Reviewer finishes without posting any comment.
		return &agent.Result{Text: "ok"}, nil
	}
	w, _ := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Merged || !result.Exhausted {
		t.Errorf("result = %+v, want fail-closed exhaustion", result)
	}
}

func TestExecuteStaleVerdictIgnored(t *testing.T) {
	ft := newFakeTracker()
	// An approval from before this run must never merge anything.
	ft.addComment("Old run.\nVERDICT: APPROVED", t0.Add(-time.Hour))
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		if inv.Role == agent.RoleCoder {
			ft.setPR(&tracker.PullRequest{Number: 93, State: "open"})
		}
		return &agent.Result{Text: "ok"}, nil
	}
	w, _ := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Merged {
		t.Error("stale approval merged the PR")
	}
	if len(ft.merged) != 0 {
		t.Errorf("merged = %v", ft.merged)
	}
}

func TestExecuteMissingPRBurnsRound(t *testing.T) {
	ft := newFakeTracker()
	var coderRuns int
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		switch inv.Role {
		case agent.RoleCoder:
			coderRuns++
			if coderRuns >= 2 {
				ft.setPR(&tracker.PullRequest{Number: 94, State: "open"})
			}
			return &agent.Result{Text: "done"}, nil
		case agent.RoleReviewer:
			ft.addComment("Fine.\nVERDICT: APPROVED", t0.Add(time.Minute))
			return &agent.Result{Text: "reviewed"}, nil
		}
		return nil, fmt.Errorf("unexpected role %s", inv.Role)
	}
	w, inv := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Merged || result.Rounds != 2 {
		t.Errorf("result = %+v, want merge in round 2", result)
	}
	coder := inv.roleCalls(agent.RoleCoder)
	if !strings.Contains(coder[1].UserPrompt, "No open pull request was found") {
		t.Error("second round should explain the missing PR")
	}
}

func TestExecuteCoderFailureBurnsRound(t *testing.T) {
	ft := newFakeTracker()
	var coderRuns int
	handler := func(inv agent.Invocation) (*agent.Result, error) {
		switch inv.Role {
		case agent.RoleCoder:
			coderRuns++
			if coderRuns == 1 {
				return nil, &agent.Error{Kind: agent.KindTimeout, Role: inv.Role, Err: errors.New("deadline")}
			}
			ft.setPR(&tracker.PullRequest{Number: 95, State: "open"})
			return &agent.Result{Text: "done"}, nil
		case agent.RoleReviewer:
			ft.addComment("Fine.\nVERDICT: APPROVED", t0.Add(time.Minute))
			return &agent.Result{Text: "reviewed"}, nil
		}
		return nil, fmt.Errorf("unexpected role %s", inv.Role)
	}
	w, _ := testWorkflow(t, ft, handler)
	issue := codeIssue()

	result, err := w.Execute(context.Background(), &issue)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Merged || result.Rounds != 2 {
		t.Errorf("result = %+v, want recovery in round 2", result)
	}
}

func TestExecuteTrackerErrorsPropagate(t *testing.T) {
	t.Run("create branch", func(t *testing.T) {
		ft := newFakeTracker()
		ft.createBranchErr = &tracker.Error{Kind: tracker.KindFatal, Op: "api", Err: errors.New("403")}
		w, _ := testWorkflow(t, ft, approvingHandler(ft))
		issue := codeIssue()
		if _, err := w.Execute(context.Background(), &issue); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("merge", func(t *testing.T) {
		ft := newFakeTracker()
		ft.mergeErr = &tracker.Error{Kind: tracker.KindTransient, Op: "pr merge", Err: errors.New("502")}
		w, _ := testWorkflow(t, ft, approvingHandler(ft))
		issue := codeIssue()
		if _, err := w.Execute(context.Background(), &issue); err == nil {
			t.Fatal("expected error")
		}
	})
}
