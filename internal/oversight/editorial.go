package oversight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"autogov/internal/agent"
	"autogov/internal/cabinet"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// qualityFloor is the editorial score at or below which an analysis is
// flagged as a content gap.
const qualityFloor = 4

// Review is the editorial verdict on one published analysis.
type Review struct {
	Approved        bool     `json:"approved"`
	QualityScore    int      `json:"quality_score"`
	Strengths       []string `json:"strengths,omitempty"`
	Issues          []string `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Editorial grades published analyses after the fact. It never blocks
// publication; a failing grade becomes a content-gap issue for the
// directors to see.
type Editorial struct {
	invoker agent.Invoker
	prompts *agent.PromptStore
	tracker Tracker
}

// NewEditorial wires the editorial reviewer.
func NewEditorial(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker) *Editorial {
	return &Editorial{invoker: invoker, prompts: prompts, tracker: tr}
}

// Review grades res and files a content-gap issue when the grade falls
// below the bar, at most one per decision.
func (e *Editorial) Review(ctx context.Context, res *cabinet.SessionResult) (*Review, error) {
	out, err := e.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleEditorial,
		SystemPrompt: e.prompts.ForRole(agent.RoleEditorial),
		UserPrompt:   editorialPrompt(res),
	})
	if err != nil {
		return nil, fmt.Errorf("editorial review of %s: %w", res.Decision.ID, err)
	}

	var review Review
	if err := agent.Decode(agent.RoleEditorial, out.Text, &review); err != nil {
		return nil, fmt.Errorf("editorial review of %s: %w", res.Decision.ID, err)
	}
	if review.QualityScore < 1 || review.QualityScore > 10 {
		return nil, fmt.Errorf("editorial review of %s: quality score %d out of range [1,10]", res.Decision.ID, review.QualityScore)
	}

	if review.Approved && review.QualityScore > qualityFloor {
		logging.Oversight("editorial: %s approved at %d/10", res.Decision.ID, review.QualityScore)
		return &review, nil
	}

	if err := e.fileGap(ctx, res, &review); err != nil {
		return &review, err
	}
	return &review, nil
}

func (e *Editorial) fileGap(ctx context.Context, res *cabinet.SessionResult, review *Review) error {
	open, err := e.tracker.ListOpenIssues(ctx, tracker.LabelEditorialQuality)
	if err != nil {
		return fmt.Errorf("editorial dedup scan: %w", err)
	}
	for i := range open {
		if strings.Contains(open[i].Title, res.Decision.ID) {
			logging.OversightDebug("editorial gap for %s already filed as #%d", res.Decision.ID, open[i].Number)
			return nil
		}
	}

	title := fmt.Sprintf("[editorial] Weak analysis %s scored %d/10", res.Decision.ID, review.QualityScore)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("The editorial reviewer flagged the published analysis of %q (%s).\n", res.Decision.Title, res.Decision.ID))
	if len(review.Issues) > 0 {
		sb.WriteString("\nProblems:\n")
		for _, is := range review.Issues {
			sb.WriteString(fmt.Sprintf("- %s\n", is))
		}
	}
	if len(review.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, r := range review.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", r))
		}
	}
	num, err := e.tracker.CreateIssue(ctx, title, sb.String(),
		[]string{tracker.LabelEditorialQuality, tracker.LabelGapContent})
	if err != nil {
		return fmt.Errorf("file editorial gap for %s: %w", res.Decision.ID, err)
	}
	logging.Oversight("editorial filed gap issue #%d for %s (%d/10)", num, res.Decision.ID, review.QualityScore)
	return nil
}

// editorialPrompt serializes the result for grading, dropping the
// decision full text to keep the context small.
func editorialPrompt(res *cabinet.SessionResult) string {
	trimmed := *res
	trimmed.Decision.FullText = ""
	doc, err := json.MarshalIndent(&trimmed, "", "  ")
	if err != nil {
		doc = []byte(fmt.Sprintf("(unserializable result for %s)", res.Decision.ID))
	}

	var sb strings.Builder
	sb.WriteString("Grade this published analysis for accuracy, depth, balance and readability.\n\n")
	sb.WriteString("## Analysis Document\n\n```json\n")
	sb.Write(doc)
	sb.WriteString("\n```\n\n")
	sb.WriteString("## Output\n\nRespond with a JSON object only:\n\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"approved\": true,\n")
	sb.WriteString("  \"quality_score\": 7,\n")
	sb.WriteString("  \"strengths\": [\"...\"],\n")
	sb.WriteString("  \"issues\": [\"...\"],\n")
	sb.WriteString("  \"recommendations\": [\"...\"]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("quality_score is 1-10. Withhold approval only for real defects, not stylistic taste.\n")
	return sb.String()
}
