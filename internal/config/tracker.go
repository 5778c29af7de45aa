package config

import "time"

// TrackerConfig configures issue tracker access via the gh CLI.
type TrackerConfig struct {
	// Repo is the owner/name slug. Empty means the repository of the
	// current working directory.
	Repo string `json:"repo"`

	// BaseBranch is the branch PRs target and re-exec pulls from.
	BaseBranch string `json:"base_branch"`

	// CallTimeout bounds a single gh invocation.
	CallTimeout string `json:"call_timeout"`

	// MaxRetries bounds retries for transient failures; backoff doubles
	// from RetryBackoffBase up to RetryBackoffMax.
	MaxRetries       int    `json:"max_retries"`
	RetryBackoffBase string `json:"retry_backoff_base"`
	RetryBackoffMax  string `json:"retry_backoff_max"`
}

// DefaultTrackerConfig returns the default tracker settings.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		BaseBranch:       "main",
		CallTimeout:      "30s",
		MaxRetries:       5,
		RetryBackoffBase: "2s",
		RetryBackoffMax:  "60s",
	}
}

// GetCallTimeout returns the per-call timeout as a duration.
func (t TrackerConfig) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(t.CallTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryBackoffBase returns the base backoff as a duration.
func (t TrackerConfig) GetRetryBackoffBase() time.Duration {
	d, err := time.ParseDuration(t.RetryBackoffBase)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetRetryBackoffMax returns the backoff ceiling as a duration.
func (t TrackerConfig) GetRetryBackoffMax() time.Duration {
	d, err := time.ParseDuration(t.RetryBackoffMax)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
