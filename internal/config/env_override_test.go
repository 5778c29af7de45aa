package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("model override", func(t *testing.T) {
		t.Setenv("AUTOGOV_MODEL", "claude-opus-4-20250514")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "claude-opus-4-20250514", cfg.Engine.Model)
	})

	t.Run("agent binary override", func(t *testing.T) {
		t.Setenv("AUTOGOV_AGENT_BINARY", "/usr/local/bin/claude-dev")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/usr/local/bin/claude-dev", cfg.Agents.Binary)
	})

	t.Run("effort override", func(t *testing.T) {
		t.Setenv("AUTOGOV_EFFORT", "high")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "high", cfg.Agents.Effort)
	})

	t.Run("prompts dir override", func(t *testing.T) {
		t.Setenv("AUTOGOV_PROMPTS_DIR", "/etc/autogov/prompts")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/etc/autogov/prompts", cfg.Agents.PromptsDir)
	})

	t.Run("tracker repo override", func(t *testing.T) {
		t.Setenv("AUTOGOV_REPO", "example/self-gov")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "example/self-gov", cfg.Tracker.Repo)
	})

	t.Run("base branch override", func(t *testing.T) {
		t.Setenv("AUTOGOV_BASE_BRANCH", "trunk")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "trunk", cfg.Tracker.BaseBranch)
	})

	t.Run("workspace override", func(t *testing.T) {
		t.Setenv("AUTOGOV_WORKSPACE", "/srv/gov")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/srv/gov", cfg.Paths.Workspace)
	})

	t.Run("empty env leaves defaults", func(t *testing.T) {
		t.Setenv("AUTOGOV_MODEL", "")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, DefaultEngineConfig().Model, cfg.Engine.Model)
	})
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Engine.Model = "from-file"
	cfg.Tracker.Repo = "file/repo"
	require.NoError(t, cfg.Save(path))

	t.Setenv("AUTOGOV_MODEL", "from-env")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", loaded.Engine.Model, "env should override file value")
	assert.Equal(t, "file/repo", loaded.Tracker.Repo, "untouched fields keep file values")
}
