package cabinet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestVerdictValid(t *testing.T) {
	for _, v := range []Verdict{
		VerdictStronglyPositive, VerdictPositive, VerdictNeutral,
		VerdictNegative, VerdictStronglyNegative,
	} {
		if !v.Valid() {
			t.Errorf("verdict %q should be valid", v)
		}
	}
	for _, v := range []Verdict{"", "positive ", "POSITIVE", "mixed", "5"} {
		if v.Valid() {
			t.Errorf("verdict %q should be invalid", v)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []Category{
		CategoryFiscal, CategoryLegal, CategoryEU, CategoryHealth,
		CategorySecurity, CategoryEducation, CategoryEconomy,
		CategoryTourism, CategoryEnvironment, CategoryGeneral,
	} {
		if !c.Valid() {
			t.Errorf("category %q should be valid", c)
		}
	}
	for _, c := range []Category{"", "finance", "misc", "EU"} {
		if c.Valid() {
			t.Errorf("category %q should be invalid", c)
		}
	}
}

func TestAssessmentValidate(t *testing.T) {
	valid := Assessment{
		Ministry:   "finance",
		DecisionID: "news-2026-03-15-a1b2c3d4",
		Verdict:    VerdictPositive,
		Score:      7,
		Summary:    "Fine.",
	}

	tests := []struct {
		name    string
		mutate  func(*Assessment)
		wantErr bool
	}{
		{"valid", func(a *Assessment) {}, false},
		{"score at lower bound", func(a *Assessment) { a.Score = 1 }, false},
		{"score at upper bound", func(a *Assessment) { a.Score = 10 }, false},
		{"score zero", func(a *Assessment) { a.Score = 0 }, true},
		{"score eleven", func(a *Assessment) { a.Score = 11 }, true},
		{"score negative", func(a *Assessment) { a.Score = -3 }, true},
		{"no ministry", func(a *Assessment) { a.Ministry = "" }, true},
		{"bad verdict", func(a *Assessment) { a.Verdict = "meh" }, true},
		{"empty verdict", func(a *Assessment) { a.Verdict = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)
			err := a.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecisionValidate(t *testing.T) {
	valid := Decision{
		ID:       DeriveDecisionID("2026-03-15", "Tax reform"),
		Title:    "Tax reform",
		Summary:  "A reform of taxes.",
		Date:     "2026-03-15",
		Category: CategoryFiscal,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid decision rejected: %v", err)
	}

	bad := valid
	bad.ID = "decision-1"
	if err := bad.Validate(); err == nil {
		t.Error("malformed id accepted")
	}

	bad = valid
	bad.Title = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty title accepted")
	}

	bad = valid
	bad.Category = "unknown"
	if err := bad.Validate(); err == nil {
		t.Error("unknown category accepted")
	}
}

func testRoster(t *testing.T) *Roster {
	t.Helper()
	r, err := ParseRoster([]byte(`ministries:
  - name: finance
    display_name: Ministry of Finance
    focus: fiscal policy, budget, taxation
  - name: justice
    display_name: Ministry of Justice
    focus: rule of law, courts
  - name: health
    display_name: Ministry of Health
    focus: public health, hospitals
`))
	if err != nil {
		t.Fatalf("ParseRoster: %v", err)
	}
	return r
}

func TestSortAssessments(t *testing.T) {
	roster := testRoster(t)
	assessments := []Assessment{
		{Ministry: "health", Verdict: VerdictNeutral, Score: 5},
		{Ministry: "zz_unknown", Verdict: VerdictNeutral, Score: 5},
		{Ministry: "finance", Verdict: VerdictPositive, Score: 8},
		{Ministry: "aa_unknown", Verdict: VerdictNeutral, Score: 5},
		{Ministry: "justice", Verdict: VerdictNegative, Score: 3},
	}

	SortAssessments(assessments, roster)

	got := make([]string, len(assessments))
	for i, a := range assessments {
		got[i] = a.Ministry
	}
	want := []string{"finance", "justice", "health", "aa_unknown", "zz_unknown"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sort order mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionResultRoundTrip(t *testing.T) {
	in := SessionResult{
		Decision: Decision{
			ID:       DeriveDecisionID("2026-03-15", "Tax reform"),
			Title:    "Tax reform",
			Summary:  "A reform of taxes.",
			Date:     "2026-03-15",
			Category: CategoryFiscal,
			Tags:     []string{"taxes", "budget"},
		},
		Assessments: []Assessment{
			{
				Ministry:    "finance",
				DecisionID:  DeriveDecisionID("2026-03-15", "Tax reform"),
				Verdict:     VerdictPositive,
				Score:       8,
				Summary:     "Positive for revenue.",
				KeyConcerns: []string{"enforcement cost"},
				CounterIdea: &CounterIdea{
					Title:   "Phased rollout",
					Summary: "Stage the reform over two years.",
				},
			},
		},
		Parliament: &ParliamentDebate{
			DecisionID:       DeriveDecisionID("2026-03-15", "Tax reform"),
			ConsensusSummary: "Broad support.",
			OverallVerdict:   VerdictPositive,
		},
		Critic: &CriticReport{
			DecisionID:             DeriveDecisionID("2026-03-15", "Tax reform"),
			DecisionScore:          7,
			AssessmentQualityScore: 8,
			OverallAnalysis:        "Sound but under-scrutinized.",
		},
		IssueNumber: 42,
		GeneratedAt: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out SessionResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-in +out):\n%s", diff)
	}

	// Absent optional sections must stay absent on the wire.
	minimal, err := json.Marshal(SessionResult{Decision: in.Decision, Assessments: in.Assessments[:1]})
	if err != nil {
		t.Fatalf("marshal minimal: %v", err)
	}
	for _, field := range []string{"parliament_debate", "critic_report", "counter_proposal", "issue_number"} {
		if containsField(minimal, field) {
			t.Errorf("minimal document should omit %q, got: %s", field, minimal)
		}
	}
}

func containsField(doc []byte, field string) bool {
	return json.Valid(doc) && jsonHasKey(doc, field)
}

func jsonHasKey(doc []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
