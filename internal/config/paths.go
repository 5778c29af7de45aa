package config

import "path/filepath"

// PathsConfig fixes the workspace filesystem layout. The relative layout
// under output/ is contractual with downstream renderers; only the
// workspace root moves.
type PathsConfig struct {
	Workspace string `json:"workspace"`
}

// DefaultPathsConfig returns the default layout rooted at the cwd.
func DefaultPathsConfig() PathsConfig {
	return PathsConfig{Workspace: "."}
}

// OutputDir returns the output root.
func (p PathsConfig) OutputDir() string {
	return filepath.Join(p.Workspace, "output")
}

// DataDir returns the data directory under output.
func (p PathsConfig) DataDir() string {
	return filepath.Join(p.Workspace, "output", "data")
}

// AnalysesDir holds one SessionResult JSON per decision.
func (p PathsConfig) AnalysesDir() string {
	return filepath.Join(p.DataDir(), "analyses")
}

// AnalysisPath returns the SessionResult path for a decision id.
func (p PathsConfig) AnalysisPath(decisionID string) string {
	return filepath.Join(p.AnalysesDir(), decisionID+".json")
}

// IndexPath returns the flat analyses summary list.
func (p PathsConfig) IndexPath() string {
	return filepath.Join(p.DataDir(), "analyses-index.json")
}

// TelemetryPath returns the append-only cycle journal.
func (p PathsConfig) TelemetryPath() string {
	return filepath.Join(p.DataDir(), "telemetry.jsonl")
}

// ErrorsPath returns the append-only structured error journal.
func (p PathsConfig) ErrorsPath() string {
	return filepath.Join(p.DataDir(), "errors.jsonl")
}

// ConductorJournalPath returns the conductor notes journal.
func (p PathsConfig) ConductorJournalPath() string {
	return filepath.Join(p.DataDir(), "conductor_journal.jsonl")
}

// NewsStatePath returns the news scout rate-limit state file.
func (p PathsConfig) NewsStatePath() string {
	return filepath.Join(p.OutputDir(), "news_scout_state.json")
}

// ResearchStatePath returns the research scout rate-limit state file.
func (p PathsConfig) ResearchStatePath() string {
	return filepath.Join(p.OutputDir(), "research_scout_state.json")
}

// AnalysisStatePath returns the analysis throttle state file.
func (p PathsConfig) AnalysisStatePath() string {
	return filepath.Join(p.OutputDir(), "analysis_state.json")
}

// TransparencyDir holds the public accountability records.
func (p PathsConfig) TransparencyDir() string {
	return filepath.Join(p.DataDir(), "transparency")
}

// LogsDir returns the categorized debug log directory.
func (p PathsConfig) LogsDir() string {
	return filepath.Join(p.OutputDir(), "logs")
}
