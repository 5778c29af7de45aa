// Package cabinet models the analysis domain: government decisions, the
// ministry roster, per-ministry assessments, and the three-phase
// pipeline that turns one Decision into one SessionResult.
package cabinet

import (
	"fmt"
	"sort"
	"time"
)

// Category classifies a Decision. Closed set; anything else is rejected
// at parse time.
type Category string

const (
	CategoryFiscal      Category = "fiscal"
	CategoryLegal       Category = "legal"
	CategoryEU          Category = "eu"
	CategoryHealth      Category = "health"
	CategorySecurity    Category = "security"
	CategoryEducation   Category = "education"
	CategoryEconomy     Category = "economy"
	CategoryTourism     Category = "tourism"
	CategoryEnvironment Category = "environment"
	CategoryGeneral     Category = "general"
)

// Valid reports whether c is in the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryFiscal, CategoryLegal, CategoryEU, CategoryHealth,
		CategorySecurity, CategoryEducation, CategoryEconomy,
		CategoryTourism, CategoryEnvironment, CategoryGeneral:
		return true
	}
	return false
}

// Verdict is the shared five-point judgment scale.
type Verdict string

const (
	VerdictStronglyPositive Verdict = "strongly_positive"
	VerdictPositive         Verdict = "positive"
	VerdictNeutral          Verdict = "neutral"
	VerdictNegative         Verdict = "negative"
	VerdictStronglyNegative Verdict = "strongly_negative"
)

// Valid reports whether v is in the closed verdict set.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictStronglyPositive, VerdictPositive, VerdictNeutral,
		VerdictNegative, VerdictStronglyNegative:
		return true
	}
	return false
}

// Decision is one external work item under analysis.
type Decision struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	FullText  string   `json:"full_text,omitempty"`
	Date      string   `json:"date"`
	SourceURL string   `json:"source_url,omitempty"`
	Category  Category `json:"category"`
	Tags      []string `json:"tags,omitempty"`

	// Optional translations for rendering.
	TitleEN   string `json:"title_en,omitempty"`
	SummaryEN string `json:"summary_en,omitempty"`
}

// Validate checks the Decision's invariants.
func (d *Decision) Validate() error {
	if !ValidDecisionID(d.ID) {
		return fmt.Errorf("bad decision id %q", d.ID)
	}
	if d.Title == "" {
		return fmt.Errorf("decision %s has no title", d.ID)
	}
	if !d.Category.Valid() {
		return fmt.Errorf("decision %s has unknown category %q", d.ID, d.Category)
	}
	return nil
}

// CounterIdea is one ministry's optional alternative inside its
// Assessment.
type CounterIdea struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	KeyChanges       []string `json:"key_changes,omitempty"`
	ExpectedBenefits []string `json:"expected_benefits,omitempty"`
	Feasibility      string   `json:"feasibility,omitempty"`
}

// Assessment is one ministry's analysis of one Decision.
type Assessment struct {
	Ministry        string       `json:"ministry"`
	DecisionID      string       `json:"decision_id"`
	Verdict         Verdict      `json:"verdict"`
	Score           int          `json:"score"`
	Summary         string       `json:"summary"`
	Reasoning       string       `json:"reasoning,omitempty"`
	KeyConcerns     []string     `json:"key_concerns,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
	CounterIdea     *CounterIdea `json:"counter_proposal,omitempty"`
}

// Validate checks the Assessment's invariants.
func (a *Assessment) Validate() error {
	if a.Ministry == "" {
		return fmt.Errorf("assessment has no ministry")
	}
	if a.Score < 1 || a.Score > 10 {
		return fmt.Errorf("ministry %s: score %d out of range [1,10]", a.Ministry, a.Score)
	}
	if !a.Verdict.Valid() {
		return fmt.Errorf("ministry %s: unknown verdict %q", a.Ministry, a.Verdict)
	}
	return nil
}

// ParliamentDebate is the cross-ministry synthesis.
type ParliamentDebate struct {
	DecisionID       string   `json:"decision_id"`
	ConsensusSummary string   `json:"consensus_summary"`
	Disagreements    []string `json:"disagreements,omitempty"`
	OverallVerdict   Verdict  `json:"overall_verdict"`
	DebateTranscript string   `json:"debate_transcript,omitempty"`
}

// CriticReport is the independent quality scoring.
type CriticReport struct {
	DecisionID             string   `json:"decision_id"`
	DecisionScore          int      `json:"decision_score"`
	AssessmentQualityScore int      `json:"assessment_quality_score"`
	BlindSpots             []string `json:"blind_spots,omitempty"`
	OverallAnalysis        string   `json:"overall_analysis"`
	Headline               string   `json:"headline,omitempty"`
	EUChapterRelevance     []string `json:"eu_chapter_relevance,omitempty"`
}

// CounterProposal is the unified alternative built from ministry
// counter-ideas.
type CounterProposal struct {
	DecisionID            string   `json:"decision_id"`
	Title                 string   `json:"title"`
	ExecutiveSummary      string   `json:"executive_summary"`
	DetailedProposal      string   `json:"detailed_proposal,omitempty"`
	MinistryContributions []string `json:"ministry_contributions,omitempty"`
	KeyDifferences        []string `json:"key_differences,omitempty"`
	ImplementationSteps   []string `json:"implementation_steps,omitempty"`
	RisksAndTradeoffs     []string `json:"risks_and_tradeoffs,omitempty"`
}

// SessionResult aggregates all pipeline output for one Decision. It is
// the unit persisted for downstream renderers and owns every value it
// contains.
type SessionResult struct {
	Decision        Decision          `json:"decision"`
	Assessments     []Assessment      `json:"assessments"`
	Parliament      *ParliamentDebate `json:"parliament_debate,omitempty"`
	Critic          *CriticReport     `json:"critic_report,omitempty"`
	CounterProposal *CounterProposal  `json:"counter_proposal,omitempty"`
	IssueNumber     int               `json:"issue_number,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// SortAssessments orders assessments in roster order so the persisted
// document is reproducible regardless of completion order. Ministries
// missing from the roster sort last, alphabetically.
func SortAssessments(assessments []Assessment, roster *Roster) {
	sort.SliceStable(assessments, func(i, j int) bool {
		oi, oj := roster.OrderIndex(assessments[i].Ministry), roster.OrderIndex(assessments[j].Ministry)
		if oi != oj {
			return oi < oj
		}
		return assessments[i].Ministry < assessments[j].Ministry
	})
}
