// Package config holds all autogov configuration: engine knobs, agent role
// settings, tracker access, rate limits, and the workspace filesystem layout.
// Configuration is layered: compiled defaults, then .autogov/config.json,
// then environment overrides, then CLI flags (applied by the caller).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all autogov configuration.
type Config struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Engine loop settings
	Engine EngineConfig `json:"engine"`

	// Agent subprocess settings
	Agents AgentsConfig `json:"agents"`

	// Issue tracker access
	Tracker TrackerConfig `json:"tracker"`

	// Caps and rate limits
	Limits LimitsConfig `json:"limits"`

	// Workspace filesystem layout
	Paths PathsConfig `json:"paths"`

	// Logging (also read directly by internal/logging)
	Logging LoggingConfig `json:"logging"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "autogov",
		Version: "0.9.0",

		Engine:  DefaultEngineConfig(),
		Agents:  DefaultAgentsConfig(),
		Tracker: DefaultTrackerConfig(),
		Limits:  DefaultLimitsConfig(),
		Paths:   DefaultPathsConfig(),

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default path to .autogov/config.json.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".autogov", "config.json")
}

// Load loads configuration from a JSON file, falling back to defaults when
// the file does not exist. Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AUTOGOV_MODEL"); v != "" {
		c.Engine.Model = v
	}
	if v := os.Getenv("AUTOGOV_AGENT_BINARY"); v != "" {
		c.Agents.Binary = v
	}
	if v := os.Getenv("AUTOGOV_EFFORT"); v != "" {
		c.Agents.Effort = v
	}
	if v := os.Getenv("AUTOGOV_PROMPTS_DIR"); v != "" {
		c.Agents.PromptsDir = v
	}
	if v := os.Getenv("AUTOGOV_REPO"); v != "" {
		c.Tracker.Repo = v
	}
	if v := os.Getenv("AUTOGOV_BASE_BRANCH"); v != "" {
		c.Tracker.BaseBranch = v
	}
	if v := os.Getenv("AUTOGOV_WORKSPACE"); v != "" {
		c.Paths.Workspace = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Model == "" {
		return fmt.Errorf("engine model not configured (set engine.model or AUTOGOV_MODEL)")
	}
	if c.Agents.Binary == "" {
		return fmt.Errorf("agent binary not configured")
	}
	if c.Engine.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must be >= 0 (0 = unbounded), got %d", c.Engine.MaxCycles)
	}
	if c.Engine.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be >= 0, got %d", c.Engine.CooldownSeconds)
	}
	if c.Engine.MaxPRRounds < 1 {
		return fmt.Errorf("max_pr_rounds must be >= 1, got %d", c.Engine.MaxPRRounds)
	}
	if c.Limits.ConductorMaxActions < 1 || c.Limits.ConductorMaxActions > 6 {
		return fmt.Errorf("conductor_max_actions must be in [1,6], got %d", c.Limits.ConductorMaxActions)
	}
	if c.Limits.DebateThreshold < 0 || c.Limits.DebateThreshold > 10 {
		return fmt.Errorf("debate_threshold must be in [0,10], got %v", c.Limits.DebateThreshold)
	}
	if c.Limits.BreakerWindow < 1 {
		return fmt.Errorf("breaker_window must be >= 1, got %d", c.Limits.BreakerWindow)
	}
	if c.Limits.BreakerThreshold < 1 {
		return fmt.Errorf("breaker_threshold must be >= 1, got %d", c.Limits.BreakerThreshold)
	}
	if c.Agents.MinistryParallelism < 1 {
		return fmt.Errorf("ministry_parallelism must be >= 1, got %d", c.Agents.MinistryParallelism)
	}
	return nil
}
