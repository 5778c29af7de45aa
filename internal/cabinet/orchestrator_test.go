package cabinet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"autogov/internal/agent"
)

// fakeInvoker routes every invocation through a single handler and
// records calls for later assertions.
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

func (f *fakeInvoker) callsFor(role agent.Role) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Role == role {
			n++
		}
	}
	return n
}

func reply(text string) (*agent.Result, error) {
	return &agent.Result{Text: text}, nil
}

func ministryReply(verdict Verdict, score int, withCounter bool) string {
	counter := ""
	if withCounter {
		counter = `,"counter_proposal":{"title":"Phased rollout","summary":"Stage it over two years.","key_changes":["pilot first"],"feasibility":"high"}`
	}
	return fmt.Sprintf(`{"verdict":%q,"score":%d,"summary":"Assessment text.","reasoning":"Because.","key_concerns":["cost"],"recommendations":["monitor"]%s}`,
		verdict, score, counter)
}

const parliamentReply = `{"consensus_summary":"Broad agreement.","disagreements":["pace of rollout"],"overall_verdict":"positive","debate_transcript":"..."}`

const criticReply = `{"decision_score":7,"assessment_quality_score":8,"blind_spots":["regional impact"],"overall_analysis":"Solid.","headline":"Reform lands well","eu_chapter_relevance":["Chapter 16"]}`

const synthReply = `{"title":"Unified alternative","executive_summary":"One plan.","detailed_proposal":"...","ministry_contributions":["finance: phasing"],"key_differences":["slower"],"implementation_steps":["pilot"],"risks_and_tradeoffs":["delay"]}`

func testDecision() Decision {
	return Decision{
		ID:       DeriveDecisionID("2026-03-15", "Tax reform"),
		Title:    "Tax reform",
		Summary:  "A reform of taxes.",
		Date:     "2026-03-15",
		Category: CategoryFiscal,
	}
}

func testOrchestrator(t *testing.T, handler func(inv agent.Invocation) (*agent.Result, error)) (*Orchestrator, *fakeInvoker) {
	t.Helper()
	prompts, err := agent.LoadPrompts(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	inv := &fakeInvoker{handler: handler}
	return NewOrchestrator(inv, prompts, testRoster(t), 3), inv
}

func TestAnalyzeFullPipeline(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, inv := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		switch call.Role {
		case agent.RoleMinistry:
			if strings.Contains(call.UserPrompt, "Ministry of Finance") {
				return reply(ministryReply(VerdictPositive, 8, true))
			}
			return reply(ministryReply(VerdictNeutral, 5, false))
		case agent.RoleParliament:
			return reply(parliamentReply)
		case agent.RoleCritic:
			return reply(criticReply)
		case agent.RoleSynthesizer:
			return reply(synthReply)
		}
		return nil, fmt.Errorf("unexpected role %s", call.Role)
	})

	d := testDecision()
	result, err := o.Analyze(context.Background(), d)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(result.Assessments) != 3 {
		t.Fatalf("got %d assessments, want 3", len(result.Assessments))
	}
	for i, want := range []string{"finance", "justice", "health"} {
		a := result.Assessments[i]
		if a.Ministry != want {
			t.Errorf("assessment %d ministry = %q, want %q", i, a.Ministry, want)
		}
		if a.DecisionID != d.ID {
			t.Errorf("assessment %d decision_id = %q, want %q", i, a.DecisionID, d.ID)
		}
	}
	if result.Assessments[0].CounterIdea == nil {
		t.Error("finance counter idea lost in phase 1")
	}

	if result.Parliament == nil || result.Parliament.OverallVerdict != VerdictPositive {
		t.Errorf("parliament = %+v", result.Parliament)
	}
	if result.Critic == nil || result.Critic.DecisionScore != 7 {
		t.Errorf("critic = %+v", result.Critic)
	}
	if result.CounterProposal == nil || result.CounterProposal.Title != "Unified alternative" {
		t.Errorf("counter proposal = %+v", result.CounterProposal)
	}
	if result.Parliament.DecisionID != d.ID || result.Critic.DecisionID != d.ID || result.CounterProposal.DecisionID != d.ID {
		t.Error("phase outputs not stamped with the decision id")
	}
	if result.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
	if got := inv.callsFor(agent.RoleSynthesizer); got != 1 {
		t.Errorf("synthesizer invoked %d times, want 1", got)
	}
}

func TestAnalyzeMinistryFailureOmitted(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _ := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		switch call.Role {
		case agent.RoleMinistry:
			if strings.Contains(call.UserPrompt, "Ministry of Justice") {
				return nil, &agent.Error{Kind: agent.KindTimeout, Role: agent.RoleMinistry, Err: context.DeadlineExceeded}
			}
			return reply(ministryReply(VerdictPositive, 7, false))
		case agent.RoleParliament:
			return reply(parliamentReply)
		case agent.RoleCritic:
			return reply(criticReply)
		}
		return nil, fmt.Errorf("unexpected role %s", call.Role)
	})

	result, err := o.Analyze(context.Background(), testDecision())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Assessments) != 2 {
		t.Fatalf("got %d assessments, want 2", len(result.Assessments))
	}
	for _, a := range result.Assessments {
		if a.Ministry == "justice" {
			t.Error("failed ministry should be omitted, not defaulted")
		}
	}
}

func TestAnalyzeParseErrorNeutralFallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name string
		text string
	}{
		{"not json", "I refuse to answer in the requested format."},
		{"score out of range", ministryReply(VerdictPositive, 99, false)},
		{"unknown verdict", `{"verdict":"shrug","score":5,"summary":"?"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
				switch call.Role {
				case agent.RoleMinistry:
					if strings.Contains(call.UserPrompt, "Ministry of Justice") {
						return reply(tt.text)
					}
					return reply(ministryReply(VerdictPositive, 7, false))
				case agent.RoleParliament:
					return reply(parliamentReply)
				case agent.RoleCritic:
					return reply(criticReply)
				}
				return nil, fmt.Errorf("unexpected role %s", call.Role)
			})

			result, err := o.Analyze(context.Background(), testDecision())
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if len(result.Assessments) != 3 {
				t.Fatalf("got %d assessments, want 3 (neutral fallback expected)", len(result.Assessments))
			}
			justice := result.Assessments[1]
			if justice.Ministry != "justice" {
				t.Fatalf("assessment order broken: %+v", result.Assessments)
			}
			if justice.Verdict != VerdictNeutral || justice.Score != 5 {
				t.Errorf("fallback = verdict %q score %d, want neutral 5", justice.Verdict, justice.Score)
			}
			if !strings.Contains(justice.Summary, "neutral default") {
				t.Errorf("fallback summary %q should say so", justice.Summary)
			}
		})
	}
}

func TestAnalyzeAllMinistriesFailed(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, inv := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		return nil, &agent.Error{Kind: agent.KindExecError, Role: call.Role, Err: errors.New("spawn failed")}
	})

	result, err := o.Analyze(context.Background(), testDecision())
	if result != nil {
		t.Errorf("result should be nil, got %+v", result)
	}
	var empty *AnalysisEmptyError
	if !errors.As(err, &empty) {
		t.Fatalf("error = %v, want AnalysisEmptyError", err)
	}
	if empty.DecisionID != testDecision().ID {
		t.Errorf("error decision id = %q", empty.DecisionID)
	}
	// Phase 2 must not run on an empty phase 1.
	if n := inv.callsFor(agent.RoleParliament) + inv.callsFor(agent.RoleCritic); n != 0 {
		t.Errorf("phase 2 invoked %d times after empty phase 1", n)
	}
}

func TestAnalyzeSynthesizerNeedsCounterIdeas(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, inv := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		switch call.Role {
		case agent.RoleMinistry:
			return reply(ministryReply(VerdictNeutral, 5, false))
		case agent.RoleParliament:
			return reply(parliamentReply)
		case agent.RoleCritic:
			return reply(criticReply)
		}
		return nil, fmt.Errorf("unexpected role %s", call.Role)
	})

	result, err := o.Analyze(context.Background(), testDecision())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.CounterProposal != nil {
		t.Errorf("counter proposal = %+v, want nil", result.CounterProposal)
	}
	if got := inv.callsFor(agent.RoleSynthesizer); got != 0 {
		t.Errorf("synthesizer invoked %d times without any ministry counter-idea", got)
	}
}

func TestAnalyzePhaseTwoFailuresTolerated(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _ := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		switch call.Role {
		case agent.RoleMinistry:
			return reply(ministryReply(VerdictPositive, 7, true))
		case agent.RoleParliament, agent.RoleCritic:
			return nil, &agent.Error{Kind: agent.KindTimeout, Role: call.Role, Err: context.DeadlineExceeded}
		case agent.RoleSynthesizer:
			return reply(synthReply)
		}
		return nil, fmt.Errorf("unexpected role %s", call.Role)
	})

	result, err := o.Analyze(context.Background(), testDecision())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Parliament != nil || result.Critic != nil {
		t.Errorf("failed phase 2 should leave nil fields: parliament=%+v critic=%+v", result.Parliament, result.Critic)
	}
	// Synthesis still runs; it just gets no parliament context.
	if result.CounterProposal == nil {
		t.Error("counter proposal missing despite ministry counter-ideas")
	}
}

func TestAnalyzeCriticScoreOutOfRangeDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, _ := testOrchestrator(t, func(call agent.Invocation) (*agent.Result, error) {
		switch call.Role {
		case agent.RoleMinistry:
			return reply(ministryReply(VerdictNeutral, 5, false))
		case agent.RoleParliament:
			return reply(parliamentReply)
		case agent.RoleCritic:
			return reply(`{"decision_score":0,"assessment_quality_score":8,"overall_analysis":"..."}`)
		}
		return nil, fmt.Errorf("unexpected role %s", call.Role)
	})

	result, err := o.Analyze(context.Background(), testDecision())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Critic != nil {
		t.Errorf("critic report with out-of-range score kept: %+v", result.Critic)
	}
	if result.Parliament == nil {
		t.Error("parliament should survive a critic failure")
	}
}

func TestAnalyzeMinistryParallelismBounded(t *testing.T) {
	defer goleak.VerifyNone(t)

	yaml := "ministries:\n"
	for i := 0; i < 6; i++ {
		yaml += fmt.Sprintf("  - name: m%d\n    display_name: Ministry %d\n    focus: area %d\n", i, i, i)
	}
	roster, err := ParseRoster([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseRoster: %v", err)
	}

	var active, peak int32
	handler := func(call agent.Invocation) (*agent.Result, error) {
		if call.Role != agent.RoleMinistry {
			return reply(parliamentReply)
		}
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return reply(ministryReply(VerdictNeutral, 5, false))
	}

	prompts, err := agent.LoadPrompts(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	o := NewOrchestrator(&fakeInvoker{handler: handler}, prompts, roster, 2)

	if _, err := o.Analyze(context.Background(), testDecision()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak ministry concurrency %d exceeds limit 2", got)
	}
}
