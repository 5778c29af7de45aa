// Audit logging: a structured JSONL trail of every externally visible
// mutation (tracker writes, agent spawns, cycle boundaries). The telemetry
// journal records outcomes per cycle; the audit log records individual
// events inside a cycle, for postmortems.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Issue events
	AuditIssueCreated    AuditEventType = "issue_created"
	AuditIssueTransition AuditEventType = "issue_transition"
	AuditIssueClosed     AuditEventType = "issue_closed"
	AuditCommentPosted   AuditEventType = "comment_posted"

	// Pull request events
	AuditPROpened AuditEventType = "pr_opened"
	AuditPRMerged AuditEventType = "pr_merged"
	AuditPRClosed AuditEventType = "pr_closed"

	// Agent subprocess events
	AuditAgentSpawn    AuditEventType = "agent_spawn"
	AuditAgentComplete AuditEventType = "agent_complete"

	// Cycle boundaries
	AuditCycleStart AuditEventType = "cycle_start"
	AuditCycleEnd   AuditEventType = "cycle_end"

	// Self-restart
	AuditReexec AuditEventType = "reexec"
)

// AuditEvent represents one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	Issue      int                    `json:"issue,omitempty"`
	PR         int                    `json:"pr,omitempty"`
	Role       string                 `json:"role,omitempty"` // Agent role if applicable
	Cycle      int                    `json:"cycle,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes structured audit events.
type AuditLogger struct {
	cycle int
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithCycle creates an audit logger scoped to a cycle number
func AuditWithCycle(cycle int) *AuditLogger {
	return &AuditLogger{cycle: cycle}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Cycle == 0 && a.cycle != 0 {
		event.Cycle = a.cycle
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// IssueCreated logs issue creation
func (a *AuditLogger) IssueCreated(number int, title string, labels []string) {
	a.Log(AuditEvent{
		EventType: AuditIssueCreated,
		Issue:     number,
		Success:   true,
		Fields:    map[string]interface{}{"labels": labels},
		Message:   fmt.Sprintf("Issue #%d created: %s", number, title),
	})
}

// IssueTransition logs a label state transition
func (a *AuditLogger) IssueTransition(number int, from, to string) {
	a.Log(AuditEvent{
		EventType: AuditIssueTransition,
		Issue:     number,
		Success:   true,
		Fields:    map[string]interface{}{"from": from, "to": to},
		Message:   fmt.Sprintf("Issue #%d: %s -> %s", number, from, to),
	})
}

// IssueClosed logs issue closing
func (a *AuditLogger) IssueClosed(number int, reason string) {
	a.Log(AuditEvent{
		EventType: AuditIssueClosed,
		Issue:     number,
		Success:   true,
		Message:   fmt.Sprintf("Issue #%d closed: %s", number, reason),
	})
}

// CommentPosted logs a posted comment
func (a *AuditLogger) CommentPosted(number int, length int) {
	a.Log(AuditEvent{
		EventType: AuditCommentPosted,
		Issue:     number,
		Success:   true,
		Fields:    map[string]interface{}{"length": length},
		Message:   fmt.Sprintf("Comment posted on #%d (%d chars)", number, length),
	})
}

// PROpened logs PR creation
func (a *AuditLogger) PROpened(number int, branch string) {
	a.Log(AuditEvent{
		EventType: AuditPROpened,
		PR:        number,
		Success:   true,
		Fields:    map[string]interface{}{"branch": branch},
		Message:   fmt.Sprintf("PR #%d opened from %s", number, branch),
	})
}

// PRMerged logs a PR merge
func (a *AuditLogger) PRMerged(number int) {
	a.Log(AuditEvent{
		EventType: AuditPRMerged,
		PR:        number,
		Success:   true,
		Message:   fmt.Sprintf("PR #%d merged", number),
	})
}

// PRClosed logs a PR closed unmerged
func (a *AuditLogger) PRClosed(number int, reason string) {
	a.Log(AuditEvent{
		EventType: AuditPRClosed,
		PR:        number,
		Success:   true,
		Message:   fmt.Sprintf("PR #%d closed unmerged: %s", number, reason),
	})
}

// AgentSpawn logs an agent subprocess spawn
func (a *AuditLogger) AgentSpawn(role, model string) {
	a.Log(AuditEvent{
		EventType: AuditAgentSpawn,
		Role:      role,
		Success:   true,
		Fields:    map[string]interface{}{"model": model},
		Message:   fmt.Sprintf("Agent spawned: %s (%s)", role, model),
	})
}

// AgentComplete logs an agent subprocess completion
func (a *AuditLogger) AgentComplete(role string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditAgentComplete,
		Role:       role,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("Agent completed: %s (success=%v, %dms)", role, success, durationMs),
	})
}

// CycleStart logs a cycle start
func (a *AuditLogger) CycleStart(cycle int) {
	a.Log(AuditEvent{
		EventType: AuditCycleStart,
		Cycle:     cycle,
		Success:   true,
		Message:   fmt.Sprintf("Cycle %d started", cycle),
	})
}

// CycleEnd logs a cycle end
func (a *AuditLogger) CycleEnd(cycle int, productive bool, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditCycleEnd,
		Cycle:      cycle,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"productive": productive},
		Message:    fmt.Sprintf("Cycle %d ended (productive=%v, %dms)", cycle, productive, durationMs),
	})
}

// Reexec logs a self-restart
func (a *AuditLogger) Reexec(success bool, detail string) {
	a.Log(AuditEvent{
		EventType: AuditReexec,
		Success:   success,
		Message:   fmt.Sprintf("Re-exec: %s", detail),
	})
}
