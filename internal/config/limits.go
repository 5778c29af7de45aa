package config

import "time"

// LimitsConfig holds caps, rate limits, and window sizes. Every cap here is
// hard-enforced in code regardless of what an agent outputs.
type LimitsConfig struct {
	// News intake: at most NewsPerDay decisions created per calendar day.
	NewsPerDay int `json:"news_per_day"`

	// Research scout: one run per ResearchIntervalDays, at most
	// ResearchMaxIssues issues per run.
	ResearchIntervalDays int `json:"research_interval_days"`
	ResearchMaxIssues    int `json:"research_max_issues"`

	// Directors: each director invocation files at most DirectorMaxIssues.
	DirectorMaxIssues int `json:"director_max_issues"`

	// Debate filter: accept iff strength - weakness >= DebateThreshold
	// (ties reject). DebateMaxPerRun bounds proposals triaged per action.
	DebateThreshold float64 `json:"debate_threshold"`
	DebateMaxPerRun int     `json:"debate_max_per_run"`

	// Proposer: proposals filed per propose action.
	ProposeMaxPerRun int `json:"propose_max_per_run"`

	// Analysis throttle: at most AnalysesPerDay pipeline runs per day with
	// at least AnalysisMinGap between them.
	AnalysesPerDay int    `json:"analyses_per_day"`
	AnalysisMinGap string `json:"analysis_min_gap"`

	// Conductor plan bounds.
	ConductorMaxActions int `json:"conductor_max_actions"`

	// Circuit breaker: same (phase, kind, message) triple appearing in
	// BreakerThreshold of the last BreakerWindow cycles files one issue.
	BreakerWindow    int `json:"breaker_window"`
	BreakerThreshold int `json:"breaker_threshold"`

	// Context block sizes for the conductor.
	TelemetryContext int `json:"telemetry_context"`
	ErrorContext     int `json:"error_context"`
	JournalContext   int `json:"journal_context"`

	// Conductor journal file cap (lines kept on disk).
	JournalMaxLines int `json:"journal_max_lines"`

	// Journal retention for telemetry and errors.
	RetentionDays int `json:"retention_days"`

	// Cooldown clamp, seconds.
	CooldownMaxSeconds int `json:"cooldown_max_seconds"`
}

// DefaultLimitsConfig returns the default caps and limits.
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		NewsPerDay:           3,
		ResearchIntervalDays: 7,
		ResearchMaxIssues:    5,
		DirectorMaxIssues:    2,
		DebateThreshold:      2,
		DebateMaxPerRun:      2,
		ProposeMaxPerRun:     1,
		AnalysesPerDay:       5,
		AnalysisMinGap:       "2h",
		ConductorMaxActions:  6,
		BreakerWindow:        5,
		BreakerThreshold:     3,
		TelemetryContext:     20,
		ErrorContext:         30,
		JournalContext:       10,
		JournalMaxLines:      50,
		RetentionDays:        30,
		CooldownMaxSeconds:   3600,
	}
}

// GetAnalysisMinGap returns the minimum gap between analyses as a duration.
func (l LimitsConfig) GetAnalysisMinGap() time.Duration {
	d, err := time.ParseDuration(l.AnalysisMinGap)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}
