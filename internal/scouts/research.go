package scouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autogov/internal/agent"
	"autogov/internal/config"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// ResearchScout proposes engine improvements on a multi-day interval.
// Its issues enter the debate queue like any other proposal.
type ResearchScout struct {
	invoker      agent.Invoker
	prompts      *agent.PromptStore
	tracker      Tracker
	paths        config.PathsConfig
	intervalDays int
	maxIssues    int
}

// NewResearchScout wires the scout with its interval and per-run cap.
func NewResearchScout(invoker agent.Invoker, prompts *agent.PromptStore, tr Tracker, paths config.PathsConfig, intervalDays, maxIssues int) *ResearchScout {
	if intervalDays < 1 {
		intervalDays = 7
	}
	if maxIssues < 1 {
		maxIssues = 5
	}
	return &ResearchScout{
		invoker:      invoker,
		prompts:      prompts,
		tracker:      tr,
		paths:        paths,
		intervalDays: intervalDays,
		maxIssues:    maxIssues,
	}
}

// Due reports whether the configured interval has elapsed since the
// last run.
func (s *ResearchScout) Due(now time.Time) bool {
	var state researchState
	loadState(s.paths.ResearchStatePath(), &state)
	if state.LastTS.IsZero() {
		return true
	}
	return now.Sub(state.LastTS) >= time.Duration(s.intervalDays)*24*time.Hour
}

type researchProposal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type researchPayload struct {
	Proposals []researchProposal `json:"proposals"`
}

// Run spawns the research scout and files its proposals, skipping any
// whose title duplicates an open research issue. The interval state is
// advanced after every successful agent run, found work or not.
func (s *ResearchScout) Run(ctx context.Context, now time.Time) ([]int, error) {
	existing, err := s.openResearchTitles(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.invoker.Run(ctx, agent.Invocation{
		Role:         agent.RoleResearchScout,
		SystemPrompt: s.prompts.ForRole(agent.RoleResearchScout),
		UserPrompt:   researchPrompt(existing, s.maxIssues),
	})
	if err != nil {
		return nil, fmt.Errorf("research scout: %w", err)
	}

	var payload researchPayload
	if err := agent.Decode(agent.RoleResearchScout, res.Text, &payload); err != nil {
		return nil, fmt.Errorf("research scout: %w", err)
	}

	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[normalizeTitle(t)] = true
	}

	var created []int
	for _, p := range payload.Proposals {
		if len(created) >= s.maxIssues {
			break
		}
		title := strings.TrimSpace(p.Title)
		desc := strings.TrimSpace(p.Description)
		if title == "" || desc == "" {
			logging.Scouts("skipping research proposal with empty title or description")
			continue
		}
		if seen[normalizeTitle(title)] {
			logging.ScoutsDebug("research proposal %q duplicates an open issue, skipping", title)
			continue
		}
		num, err := s.tracker.CreateIssue(ctx, title, "Filed by the research scout:\n\n"+desc,
			[]string{tracker.LabelProposed, tracker.LabelResearchScout, tracker.LabelTaskCodeChange})
		if err != nil {
			return created, fmt.Errorf("file research issue %q: %w", title, err)
		}
		logging.Scouts("research scout filed issue #%d: %s", num, title)
		seen[normalizeTitle(title)] = true
		created = append(created, num)
	}

	if err := saveState(s.paths.ResearchStatePath(), researchState{LastTS: now.UTC()}); err != nil {
		logging.Scouts("research state save failed: %v", err)
	}
	return created, nil
}

func (s *ResearchScout) openResearchTitles(ctx context.Context) ([]string, error) {
	issues, err := s.tracker.ListOpenIssues(ctx, tracker.LabelResearchScout)
	if err != nil {
		return nil, fmt.Errorf("research dedup scan: %w", err)
	}
	titles := make([]string, 0, len(issues))
	for i := range issues {
		titles = append(titles, issues[i].Title)
	}
	return titles, nil
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func researchPrompt(existing []string, limit int) string {
	var sb strings.Builder
	sb.WriteString("Scan for recent developments in the agent ecosystem that could improve this project: model releases, SDK updates, tooling, and architecture patterns worth adopting.\n\n")
	sb.WriteString("## Already Filed (do not repeat these)\n\n")
	if len(existing) == 0 {
		sb.WriteString("No open research issues.\n")
	} else {
		for _, t := range existing {
			sb.WriteString(fmt.Sprintf("- %s\n", t))
		}
	}
	sb.WriteString(fmt.Sprintf("\n## Output\n\nRespond with a JSON object only, at most %d proposals:\n\n", limit))
	sb.WriteString("{\n")
	sb.WriteString("  \"proposals\": [\n")
	sb.WriteString("    {\"title\": \"...\", \"description\": \"What to change, why, and how to verify it.\"}\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Use an empty proposals array when nothing is worth filing. Only propose concrete, actionable work.\n")
	return sb.String()
}
