package tracker

import (
	"context"
	"fmt"

	"autogov/internal/logging"
)

// Lifecycle labels. Exactly one may be present on an issue at a time;
// done, failed, and rejected are terminal and sticky.
const (
	LabelProposed   = "self-improve:proposed"
	LabelBacklog    = "self-improve:backlog"
	LabelInProgress = "self-improve:in-progress"
	LabelDone       = "self-improve:done"
	LabelFailed     = "self-improve:failed"
	LabelRejected   = "self-improve:rejected"
)

// Orthogonal labels.
const (
	LabelTaskAnalysis       = "task:analysis"
	LabelTaskCodeChange     = "task:code-change"
	LabelHumanSuggestion    = "human-suggestion"
	LabelDirectorSuggestion = "director-suggestion"
	LabelStrategySuggestion = "strategy-suggestion"
	LabelResearchScout      = "research-scout"
	LabelEditorialQuality   = "editorial-quality"
	LabelGapContent         = "gap:content"
	LabelGapTechnical       = "gap:technical"

	LabelPriorityCritical = "priority:critical"
	LabelPriorityHigh     = "priority:high"
	LabelPriorityMedium   = "priority:medium"
	LabelPriorityLow      = "priority:low"
)

// StateLabels lists every lifecycle label.
var StateLabels = []string{
	LabelProposed,
	LabelBacklog,
	LabelInProgress,
	LabelDone,
	LabelFailed,
	LabelRejected,
}

// IsStateLabel reports whether name is a lifecycle label.
func IsStateLabel(name string) bool {
	for _, s := range StateLabels {
		if s == name {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a lifecycle label is sticky.
func IsTerminal(name string) bool {
	switch name {
	case LabelDone, LabelFailed, LabelRejected:
		return true
	}
	return false
}

// transitions lists the legal lifecycle edges. Creation enters at
// proposed or backlog; everything else moves along these.
var transitions = map[string][]string{
	LabelProposed:   {LabelBacklog, LabelRejected},
	LabelBacklog:    {LabelInProgress},
	LabelInProgress: {LabelDone, LabelFailed},
}

// ValidTransition reports whether from → to is a legal edge.
func ValidTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves an issue from its current lifecycle label to target.
// Re-delivering the same transition is a no-op. Illegal edges, terminal
// states, and closed issues surface as state conflicts.
func (c *Client) Transition(ctx context.Context, issue *Issue, target string) error {
	from := issue.StateLabel()

	if from == target {
		logging.TrackerDebug("issue #%d already %s, transition is a no-op", issue.Number, target)
		return nil
	}
	if IsTerminal(from) {
		return &Error{
			Kind: KindStateConflict,
			Op:   "transition",
			Err:  fmt.Errorf("issue #%d is terminal (%s), cannot move to %s", issue.Number, from, target),
		}
	}
	if issue.State != "" && issue.State != "OPEN" && issue.State != "open" {
		return &Error{
			Kind: KindStateConflict,
			Op:   "transition",
			Err:  fmt.Errorf("issue #%d is %s, cannot transition", issue.Number, issue.State),
		}
	}
	if from != "" && !ValidTransition(from, target) {
		return &Error{
			Kind: KindStateConflict,
			Op:   "transition",
			Err:  fmt.Errorf("issue #%d: illegal edge %s -> %s", issue.Number, from, target),
		}
	}

	args := []string{"issue", "edit", fmt.Sprintf("%d", issue.Number), "-R", c.repo, "--add-label", target}
	if from != "" {
		args = append(args, "--remove-label", from)
	}
	if _, err := c.run(ctx, "transition", args...); err != nil {
		return err
	}

	// Keep the caller's view coherent for the rest of the cycle.
	labels := make([]string, 0, len(issue.Labels)+1)
	for _, l := range issue.Labels {
		if l != from {
			labels = append(labels, l)
		}
	}
	issue.Labels = append(labels, target)

	logging.Tracker("issue #%d: %s -> %s", issue.Number, orNone(from), target)
	logging.Audit().IssueTransition(issue.Number, from, target)
	return nil
}

// labelDef drives the idempotent bootstrap.
type labelDef struct {
	name, color, description string
}

var labelDefs = []labelDef{
	{LabelProposed, "bfd4f2", "Waiting for debate triage"},
	{LabelBacklog, "0e8a16", "Accepted, waiting for execution"},
	{LabelInProgress, "fbca04", "Being executed this cycle"},
	{LabelDone, "5319e7", "Completed"},
	{LabelFailed, "b60205", "Execution failed"},
	{LabelRejected, "e4e669", "Rejected by debate"},
	{LabelTaskAnalysis, "1d76db", "News analysis work item"},
	{LabelTaskCodeChange, "c2e0c6", "Self-improvement code change"},
	{LabelHumanSuggestion, "d93f0b", "Filed by a human, skips debate"},
	{LabelDirectorSuggestion, "f9d0c4", "Filed by the project director"},
	{LabelStrategySuggestion, "fef2c0", "Filed by the strategic director"},
	{LabelResearchScout, "006b75", "Filed by the research scout"},
	{LabelEditorialQuality, "d4c5f9", "Editorial quality follow-up"},
	{LabelGapContent, "bfdadc", "Coverage gap: content"},
	{LabelGapTechnical, "c5def5", "Coverage gap: technical"},
	{LabelPriorityCritical, "b60205", "Drop everything"},
	{LabelPriorityHigh, "d93f0b", "Next in line"},
	{LabelPriorityMedium, "fbca04", "Normal"},
	{LabelPriorityLow, "0e8a16", "Whenever"},
}

// EnsureLabels creates or updates the full label vocabulary. Safe to run
// on every boot.
func (c *Client) EnsureLabels(ctx context.Context) error {
	for _, def := range labelDefs {
		_, err := c.run(ctx, "label-create",
			"label", "create", def.name,
			"-R", c.repo,
			"--color", def.color,
			"--description", def.description,
			"--force",
		)
		if err != nil {
			return fmt.Errorf("ensure label %s: %w", def.name, err)
		}
	}
	logging.Boot("label vocabulary ensured (%d labels)", len(labelDefs))
	return nil
}

func orNone(label string) string {
	if label == "" {
		return "(none)"
	}
	return label
}
