package cabinet

import (
	"fmt"
	"strings"
)

// renderDecision writes the shared decision block every phase prompt
// starts from.
func renderDecision(sb *strings.Builder, d Decision) {
	sb.WriteString("## Decision Under Analysis\n\n")
	sb.WriteString(fmt.Sprintf("- ID: %s\n", d.ID))
	sb.WriteString(fmt.Sprintf("- Title: %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("- Date: %s\n", d.Date))
	sb.WriteString(fmt.Sprintf("- Category: %s\n", d.Category))
	if d.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("- Source: %s\n", d.SourceURL))
	}
	if len(d.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("- Tags: %s\n", strings.Join(d.Tags, ", ")))
	}
	sb.WriteString(fmt.Sprintf("\n### Summary\n\n%s\n", d.Summary))
	if d.FullText != "" {
		sb.WriteString(fmt.Sprintf("\n### Full Text\n\n%s\n", d.FullText))
	}
	sb.WriteString("\n---\n\n")
}

// renderAssessments writes completed ministry assessments for the
// phase-2 and phase-3 prompts.
func renderAssessments(sb *strings.Builder, assessments []Assessment) {
	sb.WriteString("## Ministry Assessments\n\n")
	for _, a := range assessments {
		sb.WriteString(fmt.Sprintf("### %s (verdict: %s, score: %d/10)\n\n", a.Ministry, a.Verdict, a.Score))
		sb.WriteString(a.Summary)
		sb.WriteString("\n")
		if len(a.KeyConcerns) > 0 {
			sb.WriteString(fmt.Sprintf("\nKey concerns: %s\n", strings.Join(a.KeyConcerns, "; ")))
		}
		if len(a.Recommendations) > 0 {
			sb.WriteString(fmt.Sprintf("Recommendations: %s\n", strings.Join(a.Recommendations, "; ")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
}

// ministryPrompt builds the phase-1 user prompt for one ministry.
func ministryPrompt(m Ministry, d Decision) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are the %s.\n", m.DisplayName))
	if m.Focus != "" {
		sb.WriteString(fmt.Sprintf("Your portfolio: %s.\n", m.Focus))
	}
	sb.WriteString("\n")
	renderDecision(&sb, d)
	sb.WriteString("## Task\n\n")
	sb.WriteString("Assess this decision strictly from your portfolio's perspective.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "verdict": "strongly_positive|positive|neutral|negative|strongly_negative",` + "\n")
	sb.WriteString(`  "score": 1,` + "\n")
	sb.WriteString(`  "summary": "2-3 sentence assessment",` + "\n")
	sb.WriteString(`  "reasoning": "detailed reasoning",` + "\n")
	sb.WriteString(`  "key_concerns": ["..."],` + "\n")
	sb.WriteString(`  "recommendations": ["..."],` + "\n")
	sb.WriteString(`  "counter_proposal": {"title": "...", "summary": "...", "key_changes": ["..."], "expected_benefits": ["..."], "feasibility": "..."}` + "\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("Score 1 is worst, 10 is best. Omit counter_proposal unless you have a concrete alternative.\n")
	return sb.String()
}

// parliamentPrompt builds the phase-2 debate prompt from all surviving
// assessments.
func parliamentPrompt(d Decision, assessments []Assessment) string {
	var sb strings.Builder
	renderDecision(&sb, d)
	renderAssessments(&sb, assessments)
	sb.WriteString("## Task\n\n")
	sb.WriteString("Chair a parliamentary debate across these assessments. Identify consensus and genuine disagreement.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "consensus_summary": "...",` + "\n")
	sb.WriteString(`  "disagreements": ["..."],` + "\n")
	sb.WriteString(`  "overall_verdict": "strongly_positive|positive|neutral|negative|strongly_negative",` + "\n")
	sb.WriteString(`  "debate_transcript": "..."` + "\n")
	sb.WriteString("}\n```\n")
	return sb.String()
}

// criticPrompt builds the phase-2 independent scoring prompt.
func criticPrompt(d Decision, assessments []Assessment) string {
	var sb strings.Builder
	renderDecision(&sb, d)
	renderAssessments(&sb, assessments)
	sb.WriteString("## Task\n\n")
	sb.WriteString("Score the decision itself and the quality of the assessments above. Name blind spots no ministry covered.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "decision_score": 1,` + "\n")
	sb.WriteString(`  "assessment_quality_score": 1,` + "\n")
	sb.WriteString(`  "blind_spots": ["..."],` + "\n")
	sb.WriteString(`  "overall_analysis": "...",` + "\n")
	sb.WriteString(`  "headline": "one-line headline",` + "\n")
	sb.WriteString(`  "eu_chapter_relevance": ["..."]` + "\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("Both scores run 1 (worst) to 10 (best).\n")
	return sb.String()
}

// synthPrompt builds the phase-3 prompt from ministry counter-ideas and
// the parliament outcome.
func synthPrompt(d Decision, assessments []Assessment, parliament *ParliamentDebate) string {
	var sb strings.Builder
	renderDecision(&sb, d)
	sb.WriteString("## Ministry Counter-Proposals\n\n")
	for _, a := range assessments {
		if a.CounterIdea == nil {
			continue
		}
		ci := a.CounterIdea
		sb.WriteString(fmt.Sprintf("### From %s: %s\n\n%s\n", a.Ministry, ci.Title, ci.Summary))
		if len(ci.KeyChanges) > 0 {
			sb.WriteString(fmt.Sprintf("\nKey changes: %s\n", strings.Join(ci.KeyChanges, "; ")))
		}
		if ci.Feasibility != "" {
			sb.WriteString(fmt.Sprintf("Feasibility: %s\n", ci.Feasibility))
		}
		sb.WriteString("\n")
	}
	if parliament != nil {
		sb.WriteString(fmt.Sprintf("## Parliament Outcome\n\nVerdict: %s\n\n%s\n\n", parliament.OverallVerdict, parliament.ConsensusSummary))
	}
	sb.WriteString("---\n\n## Task\n\n")
	sb.WriteString("Merge the ministry counter-proposals into one coherent alternative to the original decision.\n")
	sb.WriteString("Respond with a single JSON object and nothing else:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString(`  "title": "...",` + "\n")
	sb.WriteString(`  "executive_summary": "...",` + "\n")
	sb.WriteString(`  "detailed_proposal": "...",` + "\n")
	sb.WriteString(`  "ministry_contributions": ["..."],` + "\n")
	sb.WriteString(`  "key_differences": ["..."],` + "\n")
	sb.WriteString(`  "implementation_steps": ["..."],` + "\n")
	sb.WriteString(`  "risks_and_tradeoffs": ["..."]` + "\n")
	sb.WriteString("}\n```\n")
	return sb.String()
}
