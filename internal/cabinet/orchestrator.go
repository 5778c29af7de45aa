package cabinet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autogov/internal/agent"
	"autogov/internal/logging"
)

// AnalysisEmptyError is returned when every ministry in phase 1 failed
// and there is nothing to debate, score, or publish.
type AnalysisEmptyError struct {
	DecisionID string
}

func (e *AnalysisEmptyError) Error() string {
	return fmt.Sprintf("analysis of %s produced no ministry assessments", e.DecisionID)
}

// Orchestrator runs the three-phase analysis pipeline for one Decision:
// all ministries in parallel, then parliament and critic in parallel,
// then the synthesizer when at least one ministry offered a counter-idea.
type Orchestrator struct {
	invoker  agent.Invoker
	prompts  *agent.PromptStore
	roster   *Roster
	parallel int
}

// NewOrchestrator wires the pipeline. parallelism bounds concurrent
// ministry agents in phase 1; values < 1 fall back to 3.
func NewOrchestrator(invoker agent.Invoker, prompts *agent.PromptStore, roster *Roster, parallelism int) *Orchestrator {
	if parallelism < 1 {
		parallelism = 3
	}
	return &Orchestrator{
		invoker:  invoker,
		prompts:  prompts,
		roster:   roster,
		parallel: parallelism,
	}
}

// Analyze runs the full pipeline and returns the aggregated result.
// Individual ministry failures are tolerated; only a fully empty phase 1
// is fatal. Parliament, critic, and synthesizer failures degrade to nil
// fields on the result.
func (o *Orchestrator) Analyze(ctx context.Context, d Decision) (*SessionResult, error) {
	started := time.Now()
	logging.Cabinet("analysis started: %s (%s)", d.ID, d.Title)

	assessments := o.runMinistries(ctx, d)
	if len(assessments) == 0 {
		return nil, &AnalysisEmptyError{DecisionID: d.ID}
	}
	SortAssessments(assessments, o.roster)

	result := &SessionResult{
		Decision:    d,
		Assessments: assessments,
	}

	var g errgroup.Group
	g.Go(func() error {
		result.Parliament = o.runParliament(ctx, d, assessments)
		return nil
	})
	g.Go(func() error {
		result.Critic = o.runCritic(ctx, d, assessments)
		return nil
	})
	g.Wait()

	if n := countCounterIdeas(assessments); n > 0 {
		result.CounterProposal = o.runSynthesizer(ctx, d, assessments, result.Parliament)
	} else {
		logging.CabinetDebug("synthesizer skipped for %s: no ministry counter-ideas", d.ID)
	}

	result.GeneratedAt = time.Now().UTC()
	logging.Cabinet("analysis finished: %s (%d assessments, %v)", d.ID, len(assessments), time.Since(started).Round(time.Millisecond))
	return result, nil
}

// runMinistries fans one agent per roster ministry, bounded by the
// configured parallelism. Run failures drop the assessment; parse
// failures fall back to a neutral default so one malformed reply never
// silences a ministry.
func (o *Orchestrator) runMinistries(ctx context.Context, d Decision) []Assessment {
	slots := make([]*Assessment, len(o.roster.Ministries))

	var g errgroup.Group
	g.SetLimit(o.parallel)
	for i, m := range o.roster.Ministries {
		i, m := i, m
		g.Go(func() error {
			a, err := o.assessMinistry(ctx, m, d)
			if err != nil {
				if agent.IsParseError(err) {
					logging.CabinetWarn("ministry %s: unparseable reply for %s, recording neutral default: %v", m.Name, d.ID, err)
					a = neutralAssessment(m, d.ID, err)
				} else {
					logging.CabinetWarn("ministry %s failed for %s: %v", m.Name, d.ID, err)
					return nil
				}
			}
			slots[i] = a
			return nil
		})
	}
	g.Wait()

	assessments := make([]Assessment, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			assessments = append(assessments, *a)
		}
	}
	return assessments
}

type assessmentPayload struct {
	Verdict         Verdict      `json:"verdict"`
	Score           int          `json:"score"`
	Summary         string       `json:"summary"`
	Reasoning       string       `json:"reasoning"`
	KeyConcerns     []string     `json:"key_concerns"`
	Recommendations []string     `json:"recommendations"`
	CounterIdea     *CounterIdea `json:"counter_proposal"`
}

func (o *Orchestrator) assessMinistry(ctx context.Context, m Ministry, d Decision) (*Assessment, error) {
	res, err := o.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleMinistry,
		SystemPrompt: o.prompts.ForRole(agent.RoleMinistry),
		UserPrompt:   ministryPrompt(m, d),
	})
	if err != nil {
		return nil, err
	}

	var p assessmentPayload
	if err := agent.Decode(agent.RoleMinistry, res.Text, &p); err != nil {
		return nil, err
	}
	a := &Assessment{
		Ministry:        m.Name,
		DecisionID:      d.ID,
		Verdict:         p.Verdict,
		Score:           p.Score,
		Summary:         p.Summary,
		Reasoning:       p.Reasoning,
		KeyConcerns:     p.KeyConcerns,
		Recommendations: p.Recommendations,
		CounterIdea:     p.CounterIdea,
	}
	if err := a.Validate(); err != nil {
		return nil, &agent.Error{Kind: agent.KindParseError, Role: agent.RoleMinistry, Err: err}
	}
	return a, nil
}

// neutralAssessment is the recovery value for a ministry whose agent
// ran but replied with something undecodable. The verdict carries no
// signal either way, which is exactly the point.
func neutralAssessment(m Ministry, decisionID string, cause error) *Assessment {
	reason := "The ministry's reply could not be decoded."
	if cause != nil {
		reason = fmt.Sprintf("The ministry's reply could not be decoded: %s", truncateReason(cause.Error(), 200))
	}
	return &Assessment{
		Ministry:   m.Name,
		DecisionID: decisionID,
		Verdict:    VerdictNeutral,
		Score:      5,
		Summary:    "Assessment unavailable; a neutral default was recorded.",
		Reasoning:  reason,
	}
}

type parliamentPayload struct {
	ConsensusSummary string   `json:"consensus_summary"`
	Disagreements    []string `json:"disagreements"`
	OverallVerdict   Verdict  `json:"overall_verdict"`
	DebateTranscript string   `json:"debate_transcript"`
}

func (o *Orchestrator) runParliament(ctx context.Context, d Decision, assessments []Assessment) *ParliamentDebate {
	res, err := o.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleParliament,
		SystemPrompt: o.prompts.ForRole(agent.RoleParliament),
		UserPrompt:   parliamentPrompt(d, assessments),
	})
	if err != nil {
		logging.CabinetWarn("parliament failed for %s: %v", d.ID, err)
		return nil
	}
	var p parliamentPayload
	if err := agent.Decode(agent.RoleParliament, res.Text, &p); err != nil {
		logging.CabinetWarn("parliament reply undecodable for %s: %v", d.ID, err)
		return nil
	}
	if !p.OverallVerdict.Valid() {
		logging.CabinetWarn("parliament verdict %q invalid for %s, dropping debate", p.OverallVerdict, d.ID)
		return nil
	}
	return &ParliamentDebate{
		DecisionID:       d.ID,
		ConsensusSummary: p.ConsensusSummary,
		Disagreements:    p.Disagreements,
		OverallVerdict:   p.OverallVerdict,
		DebateTranscript: p.DebateTranscript,
	}
}

type criticPayload struct {
	DecisionScore          int      `json:"decision_score"`
	AssessmentQualityScore int      `json:"assessment_quality_score"`
	BlindSpots             []string `json:"blind_spots"`
	OverallAnalysis        string   `json:"overall_analysis"`
	Headline               string   `json:"headline"`
	EUChapterRelevance     []string `json:"eu_chapter_relevance"`
}

func (o *Orchestrator) runCritic(ctx context.Context, d Decision, assessments []Assessment) *CriticReport {
	res, err := o.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleCritic,
		SystemPrompt: o.prompts.ForRole(agent.RoleCritic),
		UserPrompt:   criticPrompt(d, assessments),
	})
	if err != nil {
		logging.CabinetWarn("critic failed for %s: %v", d.ID, err)
		return nil
	}
	var p criticPayload
	if err := agent.Decode(agent.RoleCritic, res.Text, &p); err != nil {
		logging.CabinetWarn("critic reply undecodable for %s: %v", d.ID, err)
		return nil
	}
	if p.DecisionScore < 1 || p.DecisionScore > 10 || p.AssessmentQualityScore < 1 || p.AssessmentQualityScore > 10 {
		logging.CabinetWarn("critic scores out of range for %s (%d, %d), dropping report", d.ID, p.DecisionScore, p.AssessmentQualityScore)
		return nil
	}
	return &CriticReport{
		DecisionID:             d.ID,
		DecisionScore:          p.DecisionScore,
		AssessmentQualityScore: p.AssessmentQualityScore,
		BlindSpots:             p.BlindSpots,
		OverallAnalysis:        p.OverallAnalysis,
		Headline:               p.Headline,
		EUChapterRelevance:     p.EUChapterRelevance,
	}
}

type synthPayload struct {
	Title                 string   `json:"title"`
	ExecutiveSummary      string   `json:"executive_summary"`
	DetailedProposal      string   `json:"detailed_proposal"`
	MinistryContributions []string `json:"ministry_contributions"`
	KeyDifferences        []string `json:"key_differences"`
	ImplementationSteps   []string `json:"implementation_steps"`
	RisksAndTradeoffs     []string `json:"risks_and_tradeoffs"`
}

func (o *Orchestrator) runSynthesizer(ctx context.Context, d Decision, assessments []Assessment, parliament *ParliamentDebate) *CounterProposal {
	res, err := o.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleSynthesizer,
		SystemPrompt: o.prompts.ForRole(agent.RoleSynthesizer),
		UserPrompt:   synthPrompt(d, assessments, parliament),
	})
	if err != nil {
		logging.CabinetWarn("synthesizer failed for %s: %v", d.ID, err)
		return nil
	}
	var p synthPayload
	if err := agent.Decode(agent.RoleSynthesizer, res.Text, &p); err != nil {
		logging.CabinetWarn("synthesizer reply undecodable for %s: %v", d.ID, err)
		return nil
	}
	if p.Title == "" || p.ExecutiveSummary == "" {
		logging.CabinetWarn("synthesizer reply missing title or summary for %s, dropping proposal", d.ID)
		return nil
	}
	return &CounterProposal{
		DecisionID:            d.ID,
		Title:                 p.Title,
		ExecutiveSummary:      p.ExecutiveSummary,
		DetailedProposal:      p.DetailedProposal,
		MinistryContributions: p.MinistryContributions,
		KeyDifferences:        p.KeyDifferences,
		ImplementationSteps:   p.ImplementationSteps,
		RisksAndTradeoffs:     p.RisksAndTradeoffs,
	}
}

func countCounterIdeas(assessments []Assessment) int {
	n := 0
	for _, a := range assessments {
		if a.CounterIdea != nil {
			n++
		}
	}
	return n
}

func truncateReason(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
