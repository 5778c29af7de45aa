package scouts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"autogov/internal/cabinet"
)

const titleMaxLen = 110

var embeddedJSONRe = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// AnalysisIssueTitle derives the tracker title for a decision's analysis
// issue.
func AnalysisIssueTitle(d *cabinet.Decision) string {
	title := d.Title
	if len(title) > titleMaxLen {
		title = title[:titleMaxLen]
	}
	return "Analyze: " + title
}

// AnalysisIssueBody renders the issue body with the full decision JSON
// embedded, so execution can parse the decision straight from the issue
// without a second lookup.
func AnalysisIssueBody(d *cabinet.Decision) (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal decision %s: %w", d.ID, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Decision ID**: %s\n", d.ID))
	sb.WriteString(fmt.Sprintf("**Date**: %s\n", d.Date))
	sb.WriteString(fmt.Sprintf("**Category**: %s\n\n", d.Category))
	if d.Summary != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", d.Summary))
	}
	sb.WriteString("Run the full cabinet analysis on this decision.\n\n")
	sb.WriteString("<details><summary>Decision JSON</summary>\n\n")
	sb.WriteString(fmt.Sprintf("```json\n%s\n```\n", data))
	sb.WriteString("</details>")
	return sb.String(), nil
}

// DecisionFromBody recovers the embedded decision from an analysis
// issue body.
func DecisionFromBody(body string) (*cabinet.Decision, error) {
	m := embeddedJSONRe.FindStringSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("no embedded decision JSON in issue body")
	}
	var d cabinet.Decision
	if err := json.Unmarshal([]byte(m[1]), &d); err != nil {
		return nil, fmt.Errorf("embedded decision JSON: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("embedded decision: %w", err)
	}
	return &d, nil
}
