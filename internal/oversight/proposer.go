package oversight

import (
	"context"
	"fmt"
	"strings"

	"autogov/internal/agent"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// Proposer nominates code-change tasks from inside: it reads the
// engine's recent behavior and the workspace and files proposals for
// debate triage. Unlike director suggestions its issues start as
// proposed, not backlog.
type Proposer struct {
	invoker   agent.Invoker
	prompts   *agent.PromptStore
	tracker   Tracker
	maxPerRun int
}

// NewProposer wires the proposer with its per-run cap.
func NewProposer(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, maxPerRun int) *Proposer {
	if maxPerRun < 1 {
		maxPerRun = 1
	}
	return &Proposer{invoker: invoker, prompts: prompts, tracker: tr, maxPerRun: maxPerRun}
}

type proposal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type proposalPayload struct {
	Proposals []proposal `json:"proposals"`
}

// Run spawns the proposer and files its proposals, skipping titles that
// duplicate an open proposal. Returns the created issue numbers.
func (p *Proposer) Run(ctx context.Context, rep *Report) ([]int, error) {
	open, err := p.tracker.ListOpenIssues(ctx, tracker.LabelProposed)
	if err != nil {
		return nil, fmt.Errorf("proposer dedup scan: %w", err)
	}
	existing := make([]string, 0, len(open))
	seen := make(map[string]bool, len(open))
	for i := range open {
		existing = append(existing, open[i].Title)
		seen[normalizeTitle(open[i].Title)] = true
	}

	res, err := p.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleProposer,
		SystemPrompt: p.prompts.ForRole(agent.RoleProposer),
		UserPrompt:   proposerPrompt(rep, existing, p.maxPerRun),
	})
	if err != nil {
		return nil, fmt.Errorf("proposer: %w", err)
	}

	var payload proposalPayload
	if err := agent.Decode(agent.RoleProposer, res.Text, &payload); err != nil {
		return nil, fmt.Errorf("proposer: %w", err)
	}

	var created []int
	for _, pr := range payload.Proposals {
		if len(created) >= p.maxPerRun {
			break
		}
		title := strings.TrimSpace(pr.Title)
		desc := strings.TrimSpace(pr.Description)
		if title == "" || desc == "" {
			continue
		}
		if seen[normalizeTitle(title)] {
			logging.OversightDebug("proposal %q already open, skipping", title)
			continue
		}
		num, err := p.tracker.CreateIssue(ctx, title, "Self-proposed improvement:\n\n"+desc,
			[]string{tracker.LabelProposed, tracker.LabelTaskCodeChange})
		if err != nil {
			return created, fmt.Errorf("file proposal %q: %w", title, err)
		}
		logging.Oversight("proposer filed issue #%d: %s", num, title)
		seen[normalizeTitle(title)] = true
		created = append(created, num)
	}
	return created, nil
}

func proposerPrompt(rep *Report, existing []string, limit int) string {
	var sb strings.Builder
	sb.WriteString("Inspect this workspace and the engine's recent behavior, then propose the single most valuable code improvement. Prefer fixing recurring errors over new features.\n")

	if len(rep.RecentErrors) > 0 {
		sb.WriteString("\n## Recent Errors\n\n")
		for _, e := range rep.RecentErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	sb.WriteString("\n## Open Proposals (do not repeat these)\n\n")
	if len(existing) == 0 {
		sb.WriteString("No open proposals.\n")
	}
	for _, t := range existing {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}

	sb.WriteString(fmt.Sprintf("\n## Output\n\nRespond with a JSON object only, at most %d proposals:\n\n", limit))
	sb.WriteString("{\n")
	sb.WriteString("  \"proposals\": [\n")
	sb.WriteString("    {\"title\": \"...\", \"description\": \"What to change, why, and how a reviewer can verify it.\"}\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Use an empty proposals array when nothing is worth proposing right now.\n")
	return sb.String()
}
