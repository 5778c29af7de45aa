// Package agent spawns isolated LLM subprocesses and returns their final
// assistant text. Every invocation is a fresh process with its own system
// prompt, tool allowlist, turn budget, and wall-clock timeout; nothing is
// shared between invocations. Failures are classified into ErrorKind
// values that flow into telemetry unchanged.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"autogov/internal/config"
	"autogov/internal/logging"
)

// nestedSessionSentinel is set by the agent binary in its own child
// environment. It must be cleared before spawning so that the engine can
// itself be driven by an agent.
const nestedSessionSentinel = "CLAUDECODE"

// effortEnvVar carries the effort hint to the agent binary.
const effortEnvVar = "AGENT_EFFORT"

// Invoker is the subprocess surface the pipeline packages consume.
// Tests substitute scripted fakes.
type Invoker interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// Invocation describes one agent subprocess run. Zero values defer to the
// role presets and the runner defaults.
type Invocation struct {
	Role         Role
	SystemPrompt string
	UserPrompt   string

	// Model overrides the runner default when non-empty.
	Model string

	// Tools overrides the role's allowlist when non-nil. An empty non-nil
	// slice means no tools.
	Tools []string

	// MaxTurns overrides the role preset when > 0.
	MaxTurns int

	// Timeout overrides the configured role budget when > 0.
	Timeout time.Duration

	// Effort overrides the runner's effort hint when non-empty.
	Effort string

	// Dir is the subprocess working directory; empty means inherit.
	Dir string

	// Env entries are appended after the inherited environment.
	Env map[string]string
}

// Result is a successful agent completion.
type Result struct {
	Text       string
	SessionID  string
	NumTurns   int
	DurationMs int64
	CostUSD    float64
}

// Runner executes agent invocations against a configured binary.
type Runner struct {
	binary   string
	model    string
	effort   string
	timeouts config.AgentTimeouts
}

// NewRunner creates a runner from agent settings and the engine model id.
func NewRunner(cfg config.AgentsConfig, model string) *Runner {
	return &Runner{
		binary:   cfg.Binary,
		model:    model,
		effort:   cfg.Effort,
		timeouts: cfg.Timeouts,
	}
}

// Model returns the default model id.
func (r *Runner) Model() string {
	return r.model
}

// SetModel changes the default model id.
func (r *Runner) SetModel(model string) {
	r.model = model
}

// Run spawns one subprocess and blocks until it exits, the timeout fires,
// or ctx is canceled. Stdout and stderr are fully drained and the process
// is reaped on every path.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = TimeoutFor(inv.Role, r.timeouts)
	}
	model := inv.Model
	if model == "" {
		model = r.model
	}
	tools := inv.Tools
	if tools == nil {
		tools = inv.Role.Tools()
	}
	maxTurns := inv.MaxTurns
	if maxTurns <= 0 {
		maxTurns = inv.Role.MaxTurns()
	}
	effort := inv.Effort
	if effort == "" {
		effort = r.effort
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := commandArgs(inv.UserPrompt, inv.SystemPrompt, model, tools, maxTurns)
	cmd := exec.CommandContext(ctx, r.binary, args...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	cmd.Env = buildEnv(effort, inv.Env)

	// Terminate politely on deadline, then kill if the process lingers.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.AgentDebug("spawn role=%s model=%s tools=%d max_turns=%d timeout=%v",
		inv.Role, model, len(tools), maxTurns, timeout)
	logging.Audit().AgentSpawn(string(inv.Role), model)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			partial := partialText(stdout.Bytes())
			logging.AgentWarn("role=%s timed out after %v (partial %d bytes)", inv.Role, timeout, len(partial))
			logging.Audit().AgentComplete(string(inv.Role), elapsed.Milliseconds(), false, "timeout")
			return nil, &Error{
				Kind:    KindTimeout,
				Role:    inv.Role,
				Partial: partial,
				Elapsed: elapsed,
				Err:     fmt.Errorf("wall clock %v exceeded", timeout),
			}
		}
		msg := strings.TrimSpace(stderr.String())
		logging.AgentWarn("role=%s exec failed: %v (stderr: %s)", inv.Role, runErr, truncate(msg, 200))
		logging.Audit().AgentComplete(string(inv.Role), elapsed.Milliseconds(), false, truncate(msg, 200))
		return nil, &Error{
			Kind:    KindExecError,
			Role:    inv.Role,
			Elapsed: elapsed,
			Err:     fmt.Errorf("%w (stderr: %s)", runErr, truncate(msg, 500)),
		}
	}

	res, err := parseEnvelope(stdout.Bytes())
	if err != nil {
		logging.AgentWarn("role=%s envelope parse failed: %v", inv.Role, err)
		logging.Audit().AgentComplete(string(inv.Role), elapsed.Milliseconds(), false, "bad envelope")
		return nil, &Error{Kind: KindExecError, Role: inv.Role, Elapsed: elapsed, Err: err}
	}
	if res.Text == "" {
		logging.Audit().AgentComplete(string(inv.Role), elapsed.Milliseconds(), false, "empty output")
		return nil, &Error{
			Kind:    KindEmpty,
			Role:    inv.Role,
			Elapsed: elapsed,
			Err:     errors.New("no text in agent output"),
		}
	}

	logging.Agent("role=%s done in %v (%d turns, %d chars)", inv.Role, elapsed, res.NumTurns, len(res.Text))
	logging.Audit().AgentComplete(string(inv.Role), elapsed.Milliseconds(), true, "")
	return res, nil
}

// commandArgs builds the agent binary's argument list. The allowlist flag
// is always passed so an empty set reads as "no tools" rather than the
// binary's default.
func commandArgs(userPrompt, systemPrompt, model string, tools []string, maxTurns int) []string {
	args := []string{
		"-p", userPrompt,
		"--output-format", "json",
		"--model", model,
		"--max-turns", strconv.Itoa(maxTurns),
		"--allowedTools", strings.Join(tools, ","),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		args = append(args, "--append-system-prompt", systemPrompt)
	}
	return args
}

// buildEnv returns the child environment: the inherited environment, the
// cleared nested-session sentinel, the effort hint, then caller overrides
// in sorted key order. Later entries win.
func buildEnv(effort string, overrides map[string]string) []string {
	env := append(os.Environ(), nestedSessionSentinel+"=")
	if effort != "" {
		env = append(env, effortEnvVar+"="+effort)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// cliEnvelope is the JSON document the agent binary prints in
// --output-format json mode. Older builds nest content blocks under
// result; newer ones emit result as a flat string. Both are accepted.
type cliEnvelope struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype"`
	IsError    bool            `json:"is_error"`
	Result     json.RawMessage `json:"result"`
	SessionID  string          `json:"session_id"`
	NumTurns   int             `json:"num_turns"`
	DurationMs int64           `json:"duration_ms"`
	CostUSD    float64         `json:"total_cost_usd"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// parseEnvelope extracts the final assistant text and run metadata.
func parseEnvelope(data []byte) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Result{}, nil
	}

	var env cliEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w (raw: %s)", err, truncate(string(data), 500))
	}
	if env.Error != nil {
		return nil, fmt.Errorf("agent binary error: %s (type: %s)", env.Error.Message, env.Error.Type)
	}
	if env.IsError {
		return nil, fmt.Errorf("agent binary reported failure (subtype: %s)", env.Subtype)
	}

	text, err := resultText(env.Result)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:       strings.TrimSpace(text),
		SessionID:  env.SessionID,
		NumTurns:   env.NumTurns,
		DurationMs: env.DurationMs,
		CostUSD:    env.CostUSD,
	}, nil
}

// resultText accepts both result shapes: a flat string or an object with
// typed content blocks.
func resultText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var flat string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var blocks struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", fmt.Errorf("unrecognized result shape: %s", truncate(string(raw), 200))
	}

	var sb strings.Builder
	for _, c := range blocks.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return sb.String(), nil
}

// partialText recovers whatever assistant text a timed-out subprocess
// managed to emit.
func partialText(data []byte) string {
	res, err := parseEnvelope(data)
	if err == nil && res.Text != "" {
		return res.Text
	}
	return truncate(strings.TrimSpace(string(data)), 2000)
}

// truncate shortens s to maxLen characters, appending "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
