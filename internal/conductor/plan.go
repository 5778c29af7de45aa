// Package conductor turns a snapshot of engine state into an ordered
// action plan for one cycle, with a three-tier fallback chain behind the
// primary planner agent.
package conductor

import (
	"fmt"
	"strings"
)

// ActionName is one entry in the closed action vocabulary. The engine
// dispatches on these names; anything outside the set invalidates the
// whole plan.
type ActionName string

const (
	ActionFetchNews         ActionName = "fetch_news"
	ActionPropose           ActionName = "propose"
	ActionDebate            ActionName = "debate"
	ActionPickAndExecute    ActionName = "pick_and_execute"
	ActionDirector          ActionName = "director"
	ActionStrategicDirector ActionName = "strategic_director"
	ActionResearchScout     ActionName = "research_scout"
	ActionCooldown          ActionName = "cooldown"
	ActionHalt              ActionName = "halt"
	ActionFileIssue         ActionName = "file_issue"
	ActionSkipCycle         ActionName = "skip_cycle"
)

// AllActions lists the vocabulary in a stable order, for prompts and
// frequency summaries.
var AllActions = []ActionName{
	ActionFetchNews,
	ActionPropose,
	ActionDebate,
	ActionPickAndExecute,
	ActionDirector,
	ActionStrategicDirector,
	ActionResearchScout,
	ActionCooldown,
	ActionHalt,
	ActionFileIssue,
	ActionSkipCycle,
}

// Valid reports whether a is in the vocabulary.
func (a ActionName) Valid() bool {
	switch a {
	case ActionFetchNews, ActionPropose, ActionDebate, ActionPickAndExecute,
		ActionDirector, ActionStrategicDirector, ActionResearchScout,
		ActionCooldown, ActionHalt, ActionFileIssue, ActionSkipCycle:
		return true
	}
	return false
}

// ReadOnly reports whether the action touches no external state. In
// dry-run mode only read-only actions execute; the rest are logged and
// skipped.
func (a ActionName) ReadOnly() bool {
	switch a {
	case ActionCooldown, ActionHalt, ActionSkipCycle:
		return true
	}
	return false
}

// Action is one planned step. Argument fields are only meaningful for
// the actions that require them.
type Action struct {
	Name        ActionName `json:"action"`
	IssueNumber int        `json:"issue_number,omitempty"`
	Seconds     int        `json:"seconds,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
}

func (a Action) String() string {
	switch a.Name {
	case ActionPickAndExecute:
		return fmt.Sprintf("%s(#%d)", a.Name, a.IssueNumber)
	case ActionCooldown:
		return fmt.Sprintf("%s(%ds)", a.Name, a.Seconds)
	case ActionFileIssue:
		return fmt.Sprintf("%s(%q)", a.Name, a.Title)
	}
	return string(a.Name)
}

const (
	maxReasoningLen = 2000
	maxNotesLen     = 1000
)

// Plan is the structured planner output for one cycle.
type Plan struct {
	Reasoning                string   `json:"reasoning"`
	Actions                  []Action `json:"actions"`
	SuggestedCooldownSeconds int      `json:"suggested_cooldown_seconds,omitempty"`
	NotesForNextCycle        string   `json:"notes_for_next_cycle,omitempty"`
}

// ActionNames returns the plan's action names in order, for telemetry.
func (p *Plan) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = string(a.Name)
	}
	return names
}

// Validate rejects plans that leave the closed vocabulary, omit required
// arguments, or exceed maxActions. A rejected plan engages the fallback
// chain; nothing in it is salvaged.
func (p *Plan) Validate(maxActions int) error {
	if len(p.Actions) == 0 {
		return fmt.Errorf("plan has no actions")
	}
	if len(p.Actions) > maxActions {
		return fmt.Errorf("plan has %d actions, limit is %d", len(p.Actions), maxActions)
	}
	for i, a := range p.Actions {
		if !a.Name.Valid() {
			return fmt.Errorf("action %d: unknown action %q", i, a.Name)
		}
		switch a.Name {
		case ActionPickAndExecute:
			if a.IssueNumber <= 0 {
				return fmt.Errorf("action %d: pick_and_execute requires issue_number", i)
			}
		case ActionCooldown:
			if a.Seconds < 0 {
				return fmt.Errorf("action %d: cooldown seconds must be >= 0, got %d", i, a.Seconds)
			}
		case ActionFileIssue:
			if strings.TrimSpace(a.Title) == "" {
				return fmt.Errorf("action %d: file_issue requires title", i)
			}
			if strings.TrimSpace(a.Description) == "" {
				return fmt.Errorf("action %d: file_issue requires description", i)
			}
		}
	}
	return nil
}

// Normalize bounds free-text fields and clamps cooldowns after a plan
// has passed validation. Clamping is deliberate: an over-long cooldown
// is a tuning matter, not a reason to discard an otherwise sound plan.
func (p *Plan) Normalize(maxCooldownSeconds int) {
	p.Reasoning = clip(p.Reasoning, maxReasoningLen)
	p.NotesForNextCycle = clip(p.NotesForNextCycle, maxNotesLen)
	if p.SuggestedCooldownSeconds < 0 {
		p.SuggestedCooldownSeconds = 0
	}
	if p.SuggestedCooldownSeconds > maxCooldownSeconds {
		p.SuggestedCooldownSeconds = maxCooldownSeconds
	}
	for i := range p.Actions {
		if p.Actions[i].Name == ActionCooldown && p.Actions[i].Seconds > maxCooldownSeconds {
			p.Actions[i].Seconds = maxCooldownSeconds
		}
	}
}

func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
