package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"autogov/internal/logging"
)

const prFields = "number,title,state,headRefName,mergedAt,createdAt,url"

// CreateBranch creates a branch off the base branch. Re-creating an
// existing branch is a no-op.
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	out, err := c.run(ctx, "branch-base-sha",
		"api", fmt.Sprintf("repos/%s/git/ref/heads/%s", c.repo, c.base),
		"--jq", ".object.sha")
	if err != nil {
		return err
	}
	sha := strings.TrimSpace(string(out))
	if sha == "" {
		return &Error{Kind: KindFatal, Op: "branch-base-sha", Err: fmt.Errorf("empty sha for %s", c.base)}
	}

	_, err = c.run(ctx, "branch-create",
		"api", fmt.Sprintf("repos/%s/git/refs", c.repo),
		"-f", "ref=refs/heads/"+name,
		"-f", "sha="+sha)
	if err != nil {
		var te *Error
		if errors.As(err, &te) && strings.Contains(strings.ToLower(te.Error()), "already exists") {
			logging.TrackerDebug("branch %s already exists", name)
			return nil
		}
		return err
	}

	logging.Tracker("created branch %s from %s", name, c.base)
	return nil
}

// OpenPR opens a pull request from branch into the base branch and
// returns its number.
func (c *Client) OpenPR(ctx context.Context, branch, title, body string) (int, error) {
	out, err := c.run(ctx, "pr-create",
		"pr", "create", "-R", c.repo,
		"--head", branch, "--base", c.base,
		"--title", title, "--body", body)
	if err != nil {
		return 0, err
	}

	number, err := parseNumberFromURL(string(out))
	if err != nil {
		return 0, &Error{Kind: KindFatal, Op: "pr-create", Err: err}
	}

	logging.Tracker("opened PR #%d from %s", number, branch)
	logging.Audit().PROpened(number, branch)
	return number, nil
}

// GetPR reads one pull request.
func (c *Client) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	out, err := c.run(ctx, "pr-view",
		"pr", "view", fmt.Sprintf("%d", number), "-R", c.repo, "--json", prFields)
	if err != nil {
		return nil, err
	}

	var raw ghPR
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "pr-view", Err: fmt.Errorf("bad PR payload: %w", err)}
	}
	pr := raw.toPR()
	return &pr, nil
}

// FindPRForBranch returns the newest PR whose head is branch, or nil.
func (c *Client) FindPRForBranch(ctx context.Context, branch string) (*PullRequest, error) {
	out, err := c.run(ctx, "pr-for-branch",
		"pr", "list", "-R", c.repo,
		"--head", branch, "--state", "all", "--limit", "1", "--json", prFields)
	if err != nil {
		return nil, err
	}

	var raw []ghPR
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "pr-for-branch", Err: fmt.Errorf("bad PR list payload: %w", err)}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	pr := raw[0].toPR()
	return &pr, nil
}

// ListPRs returns PRs filtered by state ("open", "merged", "closed",
// "all"), newest first.
func (c *Client) ListPRs(ctx context.Context, state string, limit int) ([]PullRequest, error) {
	out, err := c.run(ctx, "pr-list",
		"pr", "list", "-R", c.repo,
		"--state", state, "--limit", fmt.Sprintf("%d", limit), "--json", prFields)
	if err != nil {
		return nil, err
	}

	var raw []ghPR
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "pr-list", Err: fmt.Errorf("bad PR list payload: %w", err)}
	}

	prs := make([]PullRequest, 0, len(raw))
	for _, g := range raw {
		prs = append(prs, g.toPR())
	}
	return prs, nil
}

// ListPRComments returns a PR's conversation comments in creation order.
func (c *Client) ListPRComments(ctx context.Context, number int) ([]Comment, error) {
	out, err := c.run(ctx, "pr-comments",
		"pr", "view", fmt.Sprintf("%d", number), "-R", c.repo, "--json", "comments")
	if err != nil {
		return nil, err
	}

	var raw struct {
		Comments []ghComment `json:"comments"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "pr-comments", Err: fmt.Errorf("bad comments payload: %w", err)}
	}

	comments := make([]Comment, 0, len(raw.Comments))
	for _, g := range raw.Comments {
		comments = append(comments, g.toComment())
	}
	return comments, nil
}

// CommentPR posts a comment on a pull request.
func (c *Client) CommentPR(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "pr-comment",
		"pr", "comment", fmt.Sprintf("%d", number), "-R", c.repo, "--body", body)
	if err != nil {
		return err
	}
	logging.Audit().CommentPosted(number, len(body))
	return nil
}

// MergePR squash-merges a pull request and deletes its branch.
func (c *Client) MergePR(ctx context.Context, number int) error {
	_, err := c.run(ctx, "pr-merge",
		"pr", "merge", fmt.Sprintf("%d", number), "-R", c.repo,
		"--squash", "--delete-branch")
	if err != nil {
		return err
	}
	logging.Tracker("merged PR #%d", number)
	logging.Audit().PRMerged(number)
	return nil
}

// ClosePR closes a pull request without merging and deletes its branch.
func (c *Client) ClosePR(ctx context.Context, number int, comment string) error {
	args := []string{"pr", "close", fmt.Sprintf("%d", number), "-R", c.repo, "--delete-branch"}
	if comment != "" {
		args = append(args, "--comment", comment)
	}
	_, err := c.run(ctx, "pr-close", args...)
	if err != nil {
		return err
	}
	logging.Tracker("closed PR #%d without merge", number)
	logging.Audit().PRClosed(number, comment)
	return nil
}
