// Package debate triages proposed improvements with an advocate/skeptic
// agent pair and a deterministic judge, so no third model ever decides.
package debate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"autogov/internal/agent"
	"autogov/internal/config"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// Tracker is the slice of the tracker client the filter needs.
type Tracker interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error)
	Comment(ctx context.Context, number int, body string) error
	Transition(ctx context.Context, issue *tracker.Issue, target string) error
	CloseIssue(ctx context.Context, number int, comment string) error
}

// Outcome records one triaged issue.
type Outcome struct {
	Issue    int
	Title    string
	Accepted bool
	Bypassed bool
	Strength float64
	Weakness float64
	Err      error
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("#%d error: %v", o.Issue, o.Err)
	case o.Bypassed:
		return fmt.Sprintf("#%d accepted (human suggestion, debate bypassed)", o.Issue)
	case o.Accepted:
		return fmt.Sprintf("#%d accepted (%.1f - %.1f)", o.Issue, o.Strength, o.Weakness)
	default:
		return fmt.Sprintf("#%d rejected (%.1f - %.1f)", o.Issue, o.Strength, o.Weakness)
	}
}

// Filter runs debates over open proposed issues.
type Filter struct {
	invoker agent.Invoker
	prompts *agent.PromptStore
	tracker Tracker
	limits  config.LimitsConfig
}

// New wires the debate filter.
func New(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, limits config.LimitsConfig) *Filter {
	return &Filter{invoker: invoker, prompts: prompts, tracker: tr, limits: limits}
}

// Accept is the judge: accept iff strength - weakness clears the
// threshold. Tied scores always reject, whatever the threshold.
func Accept(strength, weakness, threshold float64) bool {
	if strength == weakness {
		return false
	}
	return strength-weakness >= threshold
}

// Run triages up to the per-run cap of proposed issues, oldest first.
// A failed triage leaves its issue in proposed for a later cycle and
// does not stop the run.
func (f *Filter) Run(ctx context.Context) ([]Outcome, error) {
	issues, err := f.tracker.ListOpenIssues(ctx, tracker.LabelProposed)
	if err != nil {
		return nil, fmt.Errorf("list proposed issues: %w", err)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.Before(issues[j].CreatedAt) })

	max := f.limits.DebateMaxPerRun
	if max < 1 {
		max = 1
	}
	if len(issues) > max {
		issues = issues[:max]
	}

	outcomes := make([]Outcome, 0, len(issues))
	for i := range issues {
		o := f.Triage(ctx, &issues[i])
		if o.Err != nil {
			logging.DebateDebug("triage of #%d failed, leaving proposed: %v", o.Issue, o.Err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Triage debates one proposed issue and applies the verdict. The
// human-suggestion bypass is checked before any agent is spawned.
func (f *Filter) Triage(ctx context.Context, issue *tracker.Issue) Outcome {
	o := Outcome{Issue: issue.Number, Title: issue.Title}

	if issue.HasLabel(tracker.LabelHumanSuggestion) {
		if err := f.tracker.Transition(ctx, issue, tracker.LabelBacklog); err != nil {
			o.Err = err
			return o
		}
		o.Accepted = true
		o.Bypassed = true
		logging.Debate("#%d: human suggestion, straight to backlog", issue.Number)
		return o
	}

	adv, err := f.runAdvocate(ctx, issue)
	if err != nil {
		o.Err = err
		return o
	}
	skp, err := f.runSkeptic(ctx, issue, adv)
	if err != nil {
		o.Err = err
		return o
	}
	o.Strength = adv.StrengthScore
	o.Weakness = skp.WeaknessScore
	o.Accepted = Accept(o.Strength, o.Weakness, f.limits.DebateThreshold)

	if err := f.tracker.Comment(ctx, issue.Number, advocateComment(adv)); err != nil {
		o.Err = err
		return o
	}
	if err := f.tracker.Comment(ctx, issue.Number, skepticComment(skp, o, f.limits.DebateThreshold)); err != nil {
		o.Err = err
		return o
	}

	if o.Accepted {
		o.Err = f.tracker.Transition(ctx, issue, tracker.LabelBacklog)
		logging.Debate("%s", o)
		return o
	}
	if err := f.tracker.Transition(ctx, issue, tracker.LabelRejected); err != nil {
		o.Err = err
		return o
	}
	o.Err = f.tracker.CloseIssue(ctx, issue.Number, fmt.Sprintf("Rejected by triage: strength %.1f vs weakness %.1f (threshold %.1f).", o.Strength, o.Weakness, f.limits.DebateThreshold))
	logging.Debate("%s", o)
	return o
}

type advocateVerdict struct {
	StrengthScore float64  `json:"strength_score"`
	KeyArguments  []string `json:"key_arguments"`
	Summary       string   `json:"summary"`
}

type skepticVerdict struct {
	WeaknessScore float64  `json:"weakness_score"`
	Risks         []string `json:"risks"`
	Summary       string   `json:"summary"`
}

func (f *Filter) runAdvocate(ctx context.Context, issue *tracker.Issue) (*advocateVerdict, error) {
	res, err := f.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleAdvocate,
		SystemPrompt: f.prompts.ForRole(agent.RoleAdvocate),
		UserPrompt:   advocatePrompt(issue),
	})
	if err != nil {
		return nil, err
	}
	var v advocateVerdict
	if err := agent.Decode(agent.RoleAdvocate, res.Text, &v); err != nil {
		return nil, err
	}
	if v.StrengthScore < 0 || v.StrengthScore > 10 {
		return nil, &agent.Error{Kind: agent.KindParseError, Role: agent.RoleAdvocate,
			Err: fmt.Errorf("strength_score %.1f out of range [0,10]", v.StrengthScore)}
	}
	return &v, nil
}

func (f *Filter) runSkeptic(ctx context.Context, issue *tracker.Issue, adv *advocateVerdict) (*skepticVerdict, error) {
	res, err := f.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleSkeptic,
		SystemPrompt: f.prompts.ForRole(agent.RoleSkeptic),
		UserPrompt:   skepticPrompt(issue, adv),
	})
	if err != nil {
		return nil, err
	}
	var v skepticVerdict
	if err := agent.Decode(agent.RoleSkeptic, res.Text, &v); err != nil {
		return nil, err
	}
	if v.WeaknessScore < 0 || v.WeaknessScore > 10 {
		return nil, &agent.Error{Kind: agent.KindParseError, Role: agent.RoleSkeptic,
			Err: fmt.Errorf("weakness_score %.1f out of range [0,10]", v.WeaknessScore)}
	}
	return &v, nil
}

func advocatePrompt(issue *tracker.Issue) string {
	var sb strings.Builder
	sb.WriteString("## Proposal Under Triage\n\n")
	sb.WriteString(fmt.Sprintf("Issue #%d: %s\n\n%s\n\n---\n\n", issue.Number, issue.Title, issue.Body))
	sb.WriteString("## Task\n\n")
	sb.WriteString("Make the strongest honest case FOR implementing this proposal.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "strength_score": 0,` + "\n")
	sb.WriteString(`  "key_arguments": ["..."],` + "\n")
	sb.WriteString(`  "summary": "one paragraph"` + "\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("strength_score runs 0 (worthless) to 10 (must do now).\n")
	return sb.String()
}

func skepticPrompt(issue *tracker.Issue, adv *advocateVerdict) string {
	var sb strings.Builder
	sb.WriteString("## Proposal Under Triage\n\n")
	sb.WriteString(fmt.Sprintf("Issue #%d: %s\n\n%s\n\n", issue.Number, issue.Title, issue.Body))
	sb.WriteString("## Advocate's Case\n\n")
	sb.WriteString(fmt.Sprintf("Strength: %.1f/10\n\n%s\n", adv.StrengthScore, adv.Summary))
	for _, a := range adv.KeyArguments {
		sb.WriteString(fmt.Sprintf("- %s\n", a))
	}
	sb.WriteString("\n---\n\n## Task\n\n")
	sb.WriteString("Make the strongest honest case AGAINST implementing this proposal now.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "weakness_score": 0,` + "\n")
	sb.WriteString(`  "risks": ["..."],` + "\n")
	sb.WriteString(`  "summary": "one paragraph"` + "\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("weakness_score runs 0 (harmless) to 10 (would damage the project).\n")
	return sb.String()
}

func advocateComment(v *advocateVerdict) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Advocate** (strength %.1f/10)\n\n%s\n", v.StrengthScore, v.Summary))
	for _, a := range v.KeyArguments {
		sb.WriteString(fmt.Sprintf("- %s\n", a))
	}
	return sb.String()
}

func skepticComment(v *skepticVerdict, o Outcome, threshold float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Skeptic** (weakness %.1f/10)\n\n%s\n", v.WeaknessScore, v.Summary))
	for _, r := range v.Risks {
		sb.WriteString(fmt.Sprintf("- %s\n", r))
	}
	verdict := "rejected"
	if o.Accepted {
		verdict = "accepted"
	}
	sb.WriteString(fmt.Sprintf("\n**Verdict: %s** (%.1f - %.1f vs threshold %.1f)\n", verdict, o.Strength, o.Weakness, threshold))
	return sb.String()
}
