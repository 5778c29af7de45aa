// Package tracker drives the external issue tracker through the gh CLI.
// The tracker is the system's only durable, multi-writer store: issues,
// labels, comments, and PRs carry all coordination state, and every write
// is an idempotent label transition or a new comment/PR. Transient
// failures are retried with exponential backoff; everything else is
// surfaced as a classified error.
package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"autogov/internal/config"
	"autogov/internal/logging"
)

// Client executes tracker operations against one repository.
type Client struct {
	repo        string
	base        string
	binary      string
	callTimeout time.Duration
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration

	// sleep is swapped in tests to skip real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a client from tracker settings.
func New(cfg config.TrackerConfig) *Client {
	return &Client{
		repo:        cfg.Repo,
		base:        cfg.BaseBranch,
		binary:      "gh",
		callTimeout: cfg.GetCallTimeout(),
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.GetRetryBackoffBase(),
		backoffMax:  cfg.GetRetryBackoffMax(),
		sleep:       sleepCtx,
	}
}

// Repo returns the configured owner/name slug.
func (c *Client) Repo() string {
	return c.repo
}

// BaseBranch returns the branch PRs merge into.
func (c *Client) BaseBranch() string {
	return c.base
}

// SetBinary overrides the gh binary path.
func (c *Client) SetBinary(bin string) {
	c.binary = bin
}

// run executes one tracker call, retrying transient failures up to the
// configured limit. Rate-limit waits honor the server's Retry-After.
func (c *Client) run(ctx context.Context, op string, args ...string) ([]byte, error) {
	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(attempt, lastErr)
			logging.TrackerWarn("%s failed (%v), retry %d/%d in %v", op, lastErr.Err, attempt, c.maxRetries, delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &Error{Kind: KindFatal, Op: op, Err: err}
			}
		}

		out, err := c.runOnce(ctx, op, args)
		if err == nil {
			return out, nil
		}
		var te *Error
		if errors.As(err, &te) && te.Kind == KindTransient {
			lastErr = te
			continue
		}
		return nil, err
	}

	return nil, &Error{
		Kind: KindFatal,
		Op:   op,
		Err:  fmt.Errorf("retries exhausted after %d attempts: %w", c.maxRetries+1, lastErr.Err),
	}
}

// runOnce executes a single gh invocation under the per-call timeout.
func (c *Client) runOnce(ctx context.Context, op string, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.TrackerDebug("%s: %s %s", op, c.binary, truncate(strings.Join(args, " "), 300))

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &Error{
			Kind: KindTransient,
			Op:   op,
			Err:  fmt.Errorf("call timed out after %v", c.callTimeout),
		}
	}

	return nil, classify(op, stderr.String(), err)
}

// retryDelay picks the wait before the given retry attempt (1-based).
func (c *Client) retryDelay(attempt int, last *Error) time.Duration {
	if last != nil && last.RetryAfter > 0 {
		return last.RetryAfter
	}
	delay := c.backoffBase << (attempt - 1)
	return min(delay, c.backoffMax)
}

// classify sorts a failed gh call into transient vs fatal based on its
// stderr.
func classify(op, stderr string, cause error) *Error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)

	if isRateLimited(lower) {
		return &Error{
			Kind:       KindTransient,
			Op:         op,
			RetryAfter: parseRetryAfter(lower),
			Err:        fmt.Errorf("rate limited: %s", truncate(msg, 200)),
		}
	}
	if isServerError(lower) || isNetworkError(lower) {
		return &Error{
			Kind: KindTransient,
			Op:   op,
			Err:  fmt.Errorf("%w: %s", cause, truncate(msg, 200)),
		}
	}
	return &Error{
		Kind: KindFatal,
		Op:   op,
		Err:  fmt.Errorf("%w: %s", cause, truncate(msg, 300)),
	}
}

func isRateLimited(lower string) bool {
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "http 429")
}

func isServerError(lower string) bool {
	for _, marker := range []string{"http 500", "http 502", "http 503", "http 504",
		"internal server error", "bad gateway", "service unavailable"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isNetworkError(lower string) bool {
	for _, marker := range []string{"connection refused", "connection reset",
		"no such host", "network is unreachable", "i/o timeout",
		"tls handshake", "temporary failure", "could not resolve"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var retryAfterRe = regexp.MustCompile(`retry[- ]after:?\s*(\d+)`)

// parseRetryAfter extracts a server-requested wait in seconds, or 0.
func parseRetryAfter(lower string) time.Duration {
	m := retryAfterRe.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	secs, err := strconv.Atoi(m[1])
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// parseNumberFromURL pulls the trailing issue or PR number off a gh
// output URL.
func parseNumberFromURL(out string) (int, error) {
	s := strings.TrimSpace(out)
	if s == "" {
		return 0, fmt.Errorf("empty output, expected a URL")
	}
	// gh may print hints before the URL; the URL is the last line.
	lines := strings.Split(s, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	idx := strings.LastIndex(last, "/")
	if idx == -1 || idx == len(last)-1 {
		return 0, fmt.Errorf("no number in output %q", last)
	}
	n, err := strconv.Atoi(last[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("bad number in output %q: %w", last, err)
	}
	return n, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// truncate shortens s to maxLen characters, appending "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
