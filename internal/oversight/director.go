// Package oversight runs the self-review agents: the project and
// strategic directors that audit recent operation and file improvement
// tasks, the proposer that nominates code changes for debate, and the
// editorial reviewer that grades published analyses.
package oversight

import (
	"context"
	"fmt"
	"strings"

	"autogov/internal/agent"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// Tracker is the tracker surface oversight consumes.
type Tracker interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (int, error)
}

// Kind selects which director persona runs.
type Kind string

const (
	// KindProject audits operational health: failures, stuck work,
	// telemetry skew.
	KindProject Kind = "project"
	// KindStrategic audits direction: coverage gaps, stale priorities,
	// missing capabilities.
	KindStrategic Kind = "strategic"
)

// Report is the operating picture handed to an oversight run. The
// engine assembles it from the same sources the conductor saw this
// cycle.
type Report struct {
	Cycle            int
	ProductiveCycles int
	CIHealth         string
	Backlog          []tracker.Issue
	RecentErrors     []string
	GapTitles        []string
}

// Director reviews a Report and files improvement tasks straight into
// the backlog, hard-capped per invocation.
type Director struct {
	invoker   agent.Invoker
	prompts   *agent.PromptStore
	tracker   Tracker
	kind      Kind
	maxIssues int
}

// NewDirector wires a director of the given kind with its per-run cap.
func NewDirector(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, kind Kind, maxIssues int) *Director {
	if maxIssues < 1 {
		maxIssues = 2
	}
	return &Director{
		invoker:   invoker,
		prompts:   prompts,
		tracker:   tr,
		kind:      kind,
		maxIssues: maxIssues,
	}
}

func (d *Director) role() agent.Role {
	if d.kind == KindStrategic {
		return agent.RoleStrategicDirector
	}
	return agent.RoleDirector
}

func (d *Director) suggestionLabel() string {
	if d.kind == KindStrategic {
		return tracker.LabelStrategySuggestion
	}
	return tracker.LabelDirectorSuggestion
}

type directorSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}

type directorPayload struct {
	Observations string               `json:"observations"`
	Suggestions  []directorSuggestion `json:"suggestions"`
}

// Run spawns the director over rep and files its suggestions. Director
// issues bypass debate: they land as backlog directly, tagged with the
// director's suggestion label. Returns the created issue numbers.
func (d *Director) Run(ctx context.Context, rep *Report) ([]int, error) {
	existing, err := d.tracker.ListOpenIssues(ctx, d.suggestionLabel())
	if err != nil {
		return nil, fmt.Errorf("%s director dedup scan: %w", d.kind, err)
	}
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[normalizeTitle(existing[i].Title)] = true
	}

	res, err := d.invoker.Run(ctx, agent.Invocation{
		Role:         d.role(),
		SystemPrompt: d.prompts.ForRole(d.role()),
		UserPrompt:   directorPrompt(rep, d.maxIssues),
	})
	if err != nil {
		return nil, fmt.Errorf("%s director: %w", d.kind, err)
	}

	var payload directorPayload
	if err := agent.Decode(d.role(), res.Text, &payload); err != nil {
		return nil, fmt.Errorf("%s director: %w", d.kind, err)
	}
	if payload.Observations != "" {
		logging.Oversight("%s director: %s", d.kind, payload.Observations)
	}

	var created []int
	for _, s := range payload.Suggestions {
		if len(created) >= d.maxIssues {
			logging.Oversight("%s director suggestion cap reached, dropping the rest", d.kind)
			break
		}
		title := strings.TrimSpace(s.Title)
		desc := strings.TrimSpace(s.Description)
		if title == "" || desc == "" {
			continue
		}
		if seen[normalizeTitle(title)] {
			logging.OversightDebug("%s director suggestion %q already open, skipping", d.kind, title)
			continue
		}
		labels := []string{tracker.LabelBacklog, d.suggestionLabel(), tracker.LabelTaskCodeChange}
		if p := priorityLabel(s.Priority); p != "" {
			labels = append(labels, p)
		}
		body := fmt.Sprintf("Filed by the %s director in cycle %d:\n\n%s", d.kind, rep.Cycle, desc)
		num, err := d.tracker.CreateIssue(ctx, title, body, labels)
		if err != nil {
			return created, fmt.Errorf("file %s director issue %q: %w", d.kind, title, err)
		}
		logging.Oversight("%s director filed issue #%d: %s", d.kind, num, title)
		seen[normalizeTitle(title)] = true
		created = append(created, num)
	}
	return created, nil
}

func priorityLabel(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "critical":
		return tracker.LabelPriorityCritical
	case "high":
		return tracker.LabelPriorityHigh
	case "medium":
		return tracker.LabelPriorityMedium
	case "low":
		return tracker.LabelPriorityLow
	}
	return ""
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func directorPrompt(rep *Report, limit int) string {
	var sb strings.Builder
	sb.WriteString("Review the engine's current operating picture and decide whether anything deserves a new improvement task.\n")

	sb.WriteString("\n## Operating Picture\n\n")
	sb.WriteString(fmt.Sprintf("- Cycle %d, %d productive so far\n", rep.Cycle, rep.ProductiveCycles))
	if rep.CIHealth != "" {
		sb.WriteString(fmt.Sprintf("- CI: %s\n", rep.CIHealth))
	}

	sb.WriteString("\n## Open Backlog\n\n")
	if len(rep.Backlog) == 0 {
		sb.WriteString("(empty)\n")
	}
	for i := range rep.Backlog {
		is := &rep.Backlog[i]
		sb.WriteString(fmt.Sprintf("- #%d %s [%s]\n", is.Number, is.Title, strings.Join(is.Labels, ", ")))
	}

	if len(rep.RecentErrors) > 0 {
		sb.WriteString("\n## Recent Errors\n\n")
		for _, e := range rep.RecentErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	sb.WriteString("\n## Known Gaps Already On File\n\n")
	if len(rep.GapTitles) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, t := range rep.GapTitles {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}

	sb.WriteString(fmt.Sprintf("\n## Output\n\nRespond with a JSON object only, at most %d suggestions:\n\n", limit))
	sb.WriteString("{\n")
	sb.WriteString("  \"observations\": \"One paragraph on how the engine is doing.\",\n")
	sb.WriteString("  \"suggestions\": [\n")
	sb.WriteString("    {\"title\": \"...\", \"description\": \"...\", \"priority\": \"critical|high|medium|low\"}\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Use an empty suggestions array when nothing needs filing. Do not repeat open issues or known gaps.\n")
	return sb.String()
}
