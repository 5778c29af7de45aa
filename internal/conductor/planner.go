package conductor

import (
	"context"
	"fmt"
	"strings"

	"autogov/internal/agent"
	"autogov/internal/config"
	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// planSchema is appended to every planner prompt so both the primary and
// the recovery agent answer against the same contract.
const planSchema = `## Output Contract

Respond with a single JSON object and nothing else:

` + "```json" + `
{
  "reasoning": "why these actions, in 2-4 sentences",
  "actions": [
    {"action": "fetch_news"},
    {"action": "pick_and_execute", "issue_number": 123},
    {"action": "cooldown", "seconds": 120}
  ],
  "suggested_cooldown_seconds": 60,
  "notes_for_next_cycle": "short reminder to your future self"
}
` + "```" + `

Allowed actions: fetch_news, propose, debate, pick_and_execute (requires
issue_number), director, strategic_director, research_scout, cooldown
(requires seconds), halt, file_issue (requires title and description),
skip_cycle. At most %d actions. Unknown actions or missing required
fields invalidate the entire plan.`

// Planner produces one Plan per cycle, degrading through the fallback
// chain: primary no-tool agent, then a read-only recovery agent, then a
// hard-coded safe plan that cannot fail.
type Planner struct {
	invoker agent.Invoker
	prompts *agent.PromptStore
	limits  config.LimitsConfig
}

// NewPlanner wires the planner.
func NewPlanner(invoker agent.Invoker, prompts *agent.PromptStore, limits config.LimitsConfig) *Planner {
	return &Planner{invoker: invoker, prompts: prompts, limits: limits}
}

// Plan returns the cycle's plan and whether the fallback chain was used.
// It never returns an invalid plan and it never fails outright; tier 3
// is deterministic.
func (p *Planner) Plan(ctx context.Context, snap *Snapshot) (*Plan, bool) {
	plan, err := p.tryAgent(ctx, agent.RoleConductor, snap, "")
	if err == nil {
		return plan, false
	}
	logging.ConductorWarn("primary planner failed: %v", err)

	plan, rerr := p.tryAgent(ctx, agent.RoleRecovery, snap, err.Error())
	if rerr == nil {
		logging.Conductor("recovery planner produced a valid plan")
		return plan, true
	}
	logging.ConductorWarn("recovery planner failed: %v", rerr)

	plan = p.defaultPlan(snap)
	logging.Conductor("using hard-coded default plan: %s", strings.Join(plan.ActionNames(), ", "))
	return plan, true
}

func (p *Planner) tryAgent(ctx context.Context, role agent.Role, snap *Snapshot, primaryFailure string) (*Plan, error) {
	var sb strings.Builder
	sb.WriteString(snap.Render())
	if primaryFailure != "" {
		sb.WriteString("\n## Recovery Context\n\n")
		sb.WriteString("The primary planner produced an unusable plan: ")
		sb.WriteString(primaryFailure)
		sb.WriteString("\nInvestigate with your read-only tools if needed, then plan conservatively.\n")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf(planSchema, p.limits.ConductorMaxActions))

	res, err := p.invoker.Run(ctx, agent.Invocation{
		Role:         role,
		SystemPrompt: p.prompts.ForRole(role),
		UserPrompt:   sb.String(),
	})
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := agent.Decode(role, res.Text, &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(p.limits.ConductorMaxActions); err != nil {
		return nil, fmt.Errorf("plan rejected: %w", err)
	}
	plan.Normalize(p.limits.CooldownMaxSeconds)
	return &plan, nil
}

// defaultPlan is tier 3: fetch news when still allowed today, work the
// highest-priority backlog item if there is one, then a short cooldown.
func (p *Planner) defaultPlan(snap *Snapshot) *Plan {
	var actions []Action
	if snap.NewsAllowed {
		actions = append(actions, Action{Name: ActionFetchNews})
	}
	if next := tracker.SelectNext(snap.Backlog); next != nil {
		actions = append(actions, Action{Name: ActionPickAndExecute, IssueNumber: next.Number})
	}
	actions = append(actions, Action{Name: ActionCooldown, Seconds: 60})

	return &Plan{
		Reasoning: "Planner unavailable; running the default safe plan.",
		Actions:   actions,
	}
}
