// Package telemetry persists per-cycle outcome records and structured
// errors as append-only JSONL, and runs the mechanical circuit breaker
// that files stability issues for recurring failures. The journals are
// single-writer: only the engine process appends.
package telemetry

import (
	"time"
)

// YieldKind names what a cycle produced.
type YieldKind string

const (
	YieldNone              YieldKind = "none"
	YieldPRMerged          YieldKind = "pr_merged"
	YieldAnalysisPublished YieldKind = "analysis_published"
)

// PhaseError is the classified failure attached to a phase result.
type PhaseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CyclePhaseResult records one dispatched action's outcome.
type CyclePhaseResult struct {
	Phase      string      `json:"phase"`
	OK         bool        `json:"ok"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Skipped    bool        `json:"skipped,omitempty"`
	Error      *PhaseError `json:"error,omitempty"`
}

// CycleTelemetry is one cycle's record, one JSON line in the journal.
// Partial marks a record written by the crash guard for an unfinished
// cycle.
type CycleTelemetry struct {
	CycleNumber        int                `json:"cycle_number"`
	StartedAt          time.Time          `json:"started_at"`
	EndedAt            time.Time          `json:"ended_at"`
	Productive         bool               `json:"productive"`
	Phases             []CyclePhaseResult `json:"phases"`
	ConductorReasoning string             `json:"conductor_reasoning"`
	ConductorActions   []string           `json:"conductor_actions"`
	ConductorFallback  bool               `json:"conductor_fallback"`
	YieldKind          YieldKind          `json:"yield_kind"`
	DryRun             bool               `json:"dry_run,omitempty"`
	Partial            bool               `json:"partial,omitempty"`
}

// ErrorEntry is one structured error, one JSON line in the errors
// journal.
type ErrorEntry struct {
	Timestamp time.Time `json:"ts"`
	Cycle     int       `json:"cycle"`
	Phase     string    `json:"phase"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
}
