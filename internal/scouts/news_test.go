package scouts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"autogov/internal/agent"
	"autogov/internal/cabinet"
	"autogov/internal/config"
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

type createdIssue struct {
	Title  string
	Body   string
	Labels []string
}

type fakeTracker struct {
	open      []tracker.Issue
	closed    []tracker.Issue
	created   []createdIssue
	createErr error
	listErr   error
}

func (f *fakeTracker) ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error) {
	return append([]tracker.Issue(nil), f.open...), f.listErr
}

func (f *fakeTracker) ListClosedIssues(ctx context.Context, limit int, labels ...string) ([]tracker.Issue, error) {
	return append([]tracker.Issue(nil), f.closed...), f.listErr
}

func (f *fakeTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, createdIssue{Title: title, Body: body, Labels: labels})
	return 100 + len(f.created), nil
}

var newsNow = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func testPaths(t *testing.T) config.PathsConfig {
	t.Helper()
	return config.PathsConfig{Workspace: t.TempDir()}
}

func newsReply(items ...string) string {
	return fmt.Sprintf(`{"decisions": [%s]}`, strings.Join(items, ","))
}

func newsItemJSON(title, date string) string {
	return fmt.Sprintf(`{"title": %q, "summary": "s", "date": %q, "source_url": "https://example.gov", "category": "fiscal", "tags": ["tax"]}`, title, date)
}

func newsScoutForTest(t *testing.T, ft *fakeTracker, handler func(inv agent.Invocation) (*agent.Result, error)) (*NewsScout, config.PathsConfig, *fakeInvoker) {
	t.Helper()
	paths := testPaths(t)
	prompts, err := agent.LoadPrompts(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	inv := &fakeInvoker{handler: handler}
	return NewNewsScout(inv, prompts, ft, paths, 3), paths, inv
}

func TestNewsScoutDue(t *testing.T) {
	paths := testPaths(t)
	s := NewNewsScout(nil, nil, nil, paths, 3)

	if !s.Due(newsNow) {
		t.Error("missing state file should leave the scout due")
	}

	if err := saveState(paths.NewsStatePath(), newsState{LastDate: "2026-03-15"}); err != nil {
		t.Fatalf("saveState: %v", err)
	}
	if s.Due(newsNow) {
		t.Error("already ran today, should not be due")
	}
	if !s.Due(newsNow.Add(24 * time.Hour)) {
		t.Error("next day should be due again")
	}

	if err := os.WriteFile(paths.NewsStatePath(), []byte("{torn"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !s.Due(newsNow) {
		t.Error("corrupt state file should leave the scout due")
	}
}

func TestNewsScoutRunFilesIssues(t *testing.T) {
	ft := &fakeTracker{}
	reply := newsReply(
		newsItemJSON("New VAT rate", "2026-03-15"),
		newsItemJSON("Border crossing upgrade", "2026-03-14"),
	)
	s, paths, inv := newsScoutForTest(t, ft, func(agent.Invocation) (*agent.Result, error) {
		return &agent.Result{Text: reply}, nil
	})

	created, err := s.Run(context.Background(), newsNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(created) != 2 || len(ft.created) != 2 {
		t.Fatalf("created = %v, issues = %d", created, len(ft.created))
	}

	first := ft.created[0]
	if first.Title != "Analyze: New VAT rate" {
		t.Errorf("title = %q", first.Title)
	}
	wantID := cabinet.DeriveDecisionID("2026-03-15", "New VAT rate")
	if !strings.Contains(first.Body, wantID) {
		t.Errorf("body missing decision id %s", wantID)
	}
	if len(first.Labels) != 2 || first.Labels[0] != tracker.LabelBacklog || first.Labels[1] != tracker.LabelTaskAnalysis {
		t.Errorf("labels = %v", first.Labels)
	}

	// The embedded decision must survive the trip back out.
	if _, err := DecisionFromBody(first.Body); err != nil {
		t.Errorf("DecisionFromBody on filed issue: %v", err)
	}

	var state newsState
	loadState(paths.NewsStatePath(), &state)
	if state.LastDate != "2026-03-15" {
		t.Errorf("state date = %q", state.LastDate)
	}
	if s.Due(newsNow) {
		t.Error("scout still due after a successful run")
	}

	if len(inv.calls) != 1 || inv.calls[0].Role != agent.RoleNewsScout {
		t.Errorf("calls = %+v", inv.calls)
	}
}

func TestNewsScoutCapsPerDay(t *testing.T) {
	ft := &fakeTracker{}
	var items []string
	for i := 0; i < 5; i++ {
		items = append(items, newsItemJSON(fmt.Sprintf("Decision %d", i), "2026-03-15"))
	}
	reply := newsReply(items...)
	s, _, _ := newsScoutForTest(t, ft, func(agent.Invocation) (*agent.Result, error) {
		return &agent.Result{Text: reply}, nil
	})

	created, err := s.Run(context.Background(), newsNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(created) != 3 {
		t.Errorf("created %d issues, want cap of 3", len(created))
	}
}

func TestNewsScoutSkipsTrackedDecisions(t *testing.T) {
	dupID := cabinet.DeriveDecisionID("2026-03-15", "New VAT rate")
	fileID := cabinet.DeriveDecisionID("2026-03-15", "Old pension reform")

	ft := &fakeTracker{
		open: []tracker.Issue{{Number: 7, Title: "Analyze: New VAT rate", Body: "**Decision ID**: " + dupID}},
	}
	reply := newsReply(
		newsItemJSON("New VAT rate", "2026-03-15"),
		newsItemJSON("Old pension reform", "2026-03-15"),
		newsItemJSON("Fresh road project", "2026-03-15"),
	)
	s, paths, _ := newsScoutForTest(t, ft, func(agent.Invocation) (*agent.Result, error) {
		return &agent.Result{Text: reply}, nil
	})

	// A finished analysis on disk also counts as tracked.
	if err := os.MkdirAll(paths.AnalysesDir(), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(paths.AnalysisPath(fileID), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	created, err := s.Run(context.Background(), newsNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %v, want only the fresh decision", created)
	}
	if !strings.Contains(ft.created[0].Title, "Fresh road project") {
		t.Errorf("created title = %q", ft.created[0].Title)
	}
}

func TestNewsScoutSkipsInvalidItems(t *testing.T) {
	ft := &fakeTracker{}
	reply := `{"decisions": [
		{"title": "", "date": "2026-03-15", "category": "fiscal"},
		{"title": "Bad date", "date": "next tuesday", "category": "fiscal"},
		{"title": "Odd category", "date": "2026-03-15", "category": "sports"},
		{"title": "No date", "category": "legal"}
	]}`
	s, _, _ := newsScoutForTest(t, ft, func(agent.Invocation) (*agent.Result, error) {
		return &agent.Result{Text: reply}, nil
	})

	created, err := s.Run(context.Background(), newsNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// "Odd category" falls back to general; "No date" defaults to today.
	if len(created) != 2 {
		t.Fatalf("created = %d issues, want 2", len(created))
	}
	if !strings.Contains(ft.created[0].Body, `"category": "general"`) {
		t.Errorf("category fallback missing: %s", ft.created[0].Body)
	}
	if !strings.Contains(ft.created[1].Body, `"date": "2026-03-15"`) {
		t.Errorf("date default missing: %s", ft.created[1].Body)
	}
}

func TestNewsScoutEmptyDayStaysDue(t *testing.T) {
	ft := &fakeTracker{}
	s, _, _ := newsScoutForTest(t, ft, func(agent.Invocation) (*agent.Result, error) {
		return &agent.Result{Text: `{"decisions": []}`}, nil
	})

	created, err := s.Run(context.Background(), newsNow)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created = %v", created)
	}
	if !s.Due(newsNow) {
		t.Error("an empty day must stay retryable")
	}
}

func TestNewsScoutAgentFailure(t *testing.T) {
	ft := &fakeTracker{}
	s, _, _ := newsScoutForTest(t, ft, func(inv agent.Invocation) (*agent.Result, error) {
		return nil, &agent.Error{Kind: agent.KindTimeout, Role: inv.Role, Err: errors.New("deadline")}
	})

	if _, err := s.Run(context.Background(), newsNow); err == nil {
		t.Fatal("expected error")
	}
	if len(ft.created) != 0 {
		t.Errorf("created = %v", ft.created)
	}
	if !s.Due(newsNow) {
		t.Error("failed run must not consume the day")
	}
}

func TestNewsScoutStatePathLayout(t *testing.T) {
	paths := testPaths(t)
	if err := saveState(paths.NewsStatePath(), newsState{LastDate: "2026-03-15"}); err != nil {
		t.Fatalf("saveState: %v", err)
	}
	want := filepath.Join(paths.Workspace, "output", "news_scout_state.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("state file not at %s: %v", want, err)
	}
}
