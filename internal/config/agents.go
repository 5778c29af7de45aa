package config

import "time"

// AgentsConfig configures agent subprocess invocation.
type AgentsConfig struct {
	// Binary is the agent CLI executable (resolved via PATH if relative).
	Binary string `json:"binary"`

	// Effort is the effort hint forwarded to every agent (low|medium|high).
	Effort string `json:"effort"`

	// PromptsDir holds the role system prompts and the ministry roster.
	PromptsDir string `json:"prompts_dir"`

	// MinistryParallelism bounds concurrent ministry agents in phase 1 of
	// the analysis pipeline.
	MinistryParallelism int `json:"ministry_parallelism"`

	// Timeouts are the per-role wall-clock limits.
	Timeouts AgentTimeouts `json:"timeouts"`
}

// AgentTimeouts centralizes wall-clock limits for every agent role.
//
// The shortest timeout in the chain wins: each subprocess gets its own
// context derived from the cycle context, so a role timeout can never
// outlive a shutdown signal.
type AgentTimeouts struct {
	Conductor     time.Duration `json:"conductor"`
	Recovery      time.Duration `json:"recovery"`
	Ministry      time.Duration `json:"ministry"`
	Parliament    time.Duration `json:"parliament"`
	Critic        time.Duration `json:"critic"`
	Synthesizer   time.Duration `json:"synthesizer"`
	Proposer      time.Duration `json:"proposer"`
	Advocate      time.Duration `json:"advocate"`
	Skeptic       time.Duration `json:"skeptic"`
	Coder         time.Duration `json:"coder"`
	Reviewer      time.Duration `json:"reviewer"`
	NewsScout     time.Duration `json:"news_scout"`
	ResearchScout time.Duration `json:"research_scout"`
	Director      time.Duration `json:"director"`
	Editorial     time.Duration `json:"editorial"`
}

// DefaultAgentTimeouts returns per-role defaults. Coder and reviewer runs
// include test suites and pushes, so they get far more headroom than the
// single-turn structured-output roles.
func DefaultAgentTimeouts() AgentTimeouts {
	return AgentTimeouts{
		Conductor:     2 * time.Minute,
		Recovery:      5 * time.Minute,
		Ministry:      5 * time.Minute,
		Parliament:    5 * time.Minute,
		Critic:        5 * time.Minute,
		Synthesizer:   5 * time.Minute,
		Proposer:      10 * time.Minute,
		Advocate:      5 * time.Minute,
		Skeptic:       5 * time.Minute,
		Coder:         30 * time.Minute,
		Reviewer:      15 * time.Minute,
		NewsScout:     10 * time.Minute,
		ResearchScout: 10 * time.Minute,
		Director:      10 * time.Minute,
		Editorial:     5 * time.Minute,
	}
}

// DefaultAgentsConfig returns the default agent settings.
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		Binary:              "claude",
		Effort:              "medium",
		PromptsDir:          "prompts",
		MinistryParallelism: 4,
		Timeouts:            DefaultAgentTimeouts(),
	}
}
