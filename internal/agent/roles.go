package agent

import (
	"time"

	"autogov/internal/config"
)

// Role identifies which system prompt and tool surface an invocation runs
// under. The set is closed; new roles require a prompt file and an entry
// in the tables below.
type Role string

const (
	RoleConductor         Role = "conductor"
	RoleRecovery          Role = "recovery"
	RoleMinistry          Role = "ministry"
	RoleParliament        Role = "parliament"
	RoleCritic            Role = "critic"
	RoleSynthesizer       Role = "synthesizer"
	RoleProposer          Role = "proposer"
	RoleAdvocate          Role = "advocate"
	RoleSkeptic           Role = "skeptic"
	RoleCoder             Role = "coder"
	RoleReviewer          Role = "reviewer"
	RoleNewsScout         Role = "news_scout"
	RoleResearchScout     Role = "research_scout"
	RoleDirector          Role = "director"
	RoleStrategicDirector Role = "strategic_director"
	RoleEditorial         Role = "editorial"
)

// AllRoles lists every role in the closed set. Startup uses it to verify
// the prompt directory is complete before the first cycle runs.
var AllRoles = []Role{
	RoleConductor, RoleRecovery, RoleMinistry, RoleParliament, RoleCritic,
	RoleSynthesizer, RoleProposer, RoleAdvocate, RoleSkeptic, RoleCoder,
	RoleReviewer, RoleNewsScout, RoleResearchScout, RoleDirector,
	RoleStrategicDirector, RoleEditorial,
}

// Tool names recognized by the agent binary. Write variants are only ever
// granted to the coder.
const (
	ToolWebSearch = "WebSearch"
	ToolWebFetch  = "WebFetch"
	ToolBash      = "Bash"
	ToolRead      = "Read"
	ToolGrep      = "Grep"
	ToolGlob      = "Glob"
	ToolWrite     = "Write"
	ToolEdit      = "Edit"
)

// ReadOnlyTools is the investigation surface for roles that may look but
// not touch.
var ReadOnlyTools = []string{ToolRead, ToolGrep, ToolGlob}

// Tools returns the allowed-tools set for a role. Nil means the role runs
// without any tools (single completion).
func (r Role) Tools() []string {
	switch r {
	case RoleRecovery, RoleProposer:
		return ReadOnlyTools
	case RoleMinistry:
		return []string{ToolWebSearch, ToolWebFetch}
	case RoleNewsScout:
		return []string{ToolWebSearch, ToolWebFetch}
	case RoleResearchScout:
		return []string{ToolWebSearch, ToolWebFetch, ToolRead, ToolGrep, ToolGlob}
	case RoleDirector, RoleStrategicDirector:
		return ReadOnlyTools
	case RoleCoder:
		return []string{ToolBash, ToolRead, ToolWrite, ToolEdit, ToolGrep, ToolGlob}
	case RoleReviewer:
		// Bash is needed for posting the review comment. Write and Edit
		// are never granted here.
		return []string{ToolBash, ToolRead, ToolGrep, ToolGlob}
	default:
		return nil
	}
}

// MaxTurns returns the turn budget for a role. Tool-less roles get a
// single completion.
func (r Role) MaxTurns() int {
	switch r {
	case RoleCoder:
		return 80
	case RoleReviewer:
		return 40
	case RoleResearchScout:
		return 30
	case RoleMinistry, RoleNewsScout, RoleDirector, RoleStrategicDirector:
		return 20
	case RoleRecovery, RoleProposer:
		return 15
	default:
		return 1
	}
}

// TimeoutFor maps a role to its configured wall-clock budget.
func TimeoutFor(r Role, t config.AgentTimeouts) time.Duration {
	switch r {
	case RoleConductor:
		return t.Conductor
	case RoleRecovery:
		return t.Recovery
	case RoleMinistry:
		return t.Ministry
	case RoleParliament:
		return t.Parliament
	case RoleCritic:
		return t.Critic
	case RoleSynthesizer:
		return t.Synthesizer
	case RoleProposer:
		return t.Proposer
	case RoleAdvocate:
		return t.Advocate
	case RoleSkeptic:
		return t.Skeptic
	case RoleCoder:
		return t.Coder
	case RoleReviewer:
		return t.Reviewer
	case RoleNewsScout:
		return t.NewsScout
	case RoleResearchScout:
		return t.ResearchScout
	case RoleDirector, RoleStrategicDirector:
		return t.Director
	case RoleEditorial:
		return t.Editorial
	default:
		return 5 * time.Minute
	}
}
