package tracker

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListCIRuns returns the most recent CI runs on the base branch, newest
// first.
func (c *Client) ListCIRuns(ctx context.Context, limit int) ([]CIRun, error) {
	out, err := c.run(ctx, "ci-runs",
		"run", "list", "-R", c.repo,
		"--branch", c.base, "--limit", fmt.Sprintf("%d", limit),
		"--json", "name,status,conclusion,createdAt")
	if err != nil {
		return nil, err
	}

	var raw []ghRun
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "ci-runs", Err: fmt.Errorf("bad run list payload: %w", err)}
	}

	runs := make([]CIRun, 0, len(raw))
	for _, g := range raw {
		runs = append(runs, g.toRun())
	}
	return runs, nil
}

// CIHealth summarizes recent base-branch CI outcomes for planner and
// director context.
func CIHealth(runs []CIRun) string {
	if len(runs) == 0 {
		return "no recent CI runs"
	}
	var passed, failed, pending int
	for _, r := range runs {
		switch r.Conclusion {
		case "success":
			passed++
		case "failure", "timed_out", "startup_failure":
			failed++
		default:
			pending++
		}
	}
	return fmt.Sprintf("last %d runs: %d passed, %d failed, %d pending/other",
		len(runs), passed, failed, pending)
}
