package config

// EngineConfig configures the cycle loop.
type EngineConfig struct {
	// MaxCycles bounds the run; 0 means unbounded.
	MaxCycles int `json:"max_cycles"`

	// CooldownSeconds is the base sleep between cycles. The conductor may
	// suggest a longer cooldown; the engine takes the max, clamped to
	// Limits.CooldownMaxSeconds.
	CooldownSeconds int `json:"cooldown_seconds"`

	// Model is the opaque model id passed to every agent subprocess unless
	// a role overrides it.
	Model string `json:"model"`

	// MaxPRRounds bounds the coder/reviewer loop per issue.
	MaxPRRounds int `json:"max_pr_rounds"`

	// DirectorInterval is the number of productive cycles between project
	// director runs. StrategicInterval does the same for the strategic
	// director.
	DirectorInterval  int `json:"director_interval"`
	StrategicInterval int `json:"strategic_interval"`

	// DryRun logs every non-read-only action instead of executing it.
	// Telemetry is still written.
	DryRun bool `json:"dry_run"`

	// Skip flags disable whole action families.
	SkipImprove  bool `json:"skip_improve"`
	SkipAnalysis bool `json:"skip_analysis"`
	SkipResearch bool `json:"skip_research"`
}

// DefaultEngineConfig returns the default engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxCycles:         0,
		CooldownSeconds:   60,
		Model:             "claude-sonnet-4-20250514",
		MaxPRRounds:       3,
		DirectorInterval:  10,
		StrategicInterval: 30,
	}
}
