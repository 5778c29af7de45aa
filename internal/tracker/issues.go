package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"autogov/internal/logging"
)

const issueFields = "number,title,body,state,labels,createdAt"

// ListOpenIssues returns open issues carrying every given label, newest
// first (the tracker's default ordering).
func (c *Client) ListOpenIssues(ctx context.Context, labels ...string) ([]Issue, error) {
	args := []string{"issue", "list", "-R", c.repo,
		"--state", "open", "--limit", "200", "--json", issueFields}
	for _, l := range labels {
		args = append(args, "--label", l)
	}

	out, err := c.run(ctx, "issue-list", args...)
	if err != nil {
		return nil, err
	}

	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "issue-list", Err: fmt.Errorf("bad issue list payload: %w", err)}
	}

	issues := make([]Issue, 0, len(raw))
	for _, g := range raw {
		issues = append(issues, g.toIssue())
	}
	return issues, nil
}

// ListClosedIssues returns recently closed issues carrying every given
// label.
func (c *Client) ListClosedIssues(ctx context.Context, limit int, labels ...string) ([]Issue, error) {
	args := []string{"issue", "list", "-R", c.repo,
		"--state", "closed", "--limit", fmt.Sprintf("%d", limit), "--json", issueFields}
	for _, l := range labels {
		args = append(args, "--label", l)
	}

	out, err := c.run(ctx, "issue-list-closed", args...)
	if err != nil {
		return nil, err
	}

	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "issue-list-closed", Err: fmt.Errorf("bad issue list payload: %w", err)}
	}

	issues := make([]Issue, 0, len(raw))
	for _, g := range raw {
		issues = append(issues, g.toIssue())
	}
	return issues, nil
}

// GetIssue reads one issue.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	out, err := c.run(ctx, "issue-view",
		"issue", "view", fmt.Sprintf("%d", number), "-R", c.repo, "--json", issueFields)
	if err != nil {
		return nil, err
	}

	var raw ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "issue-view", Err: fmt.Errorf("bad issue payload: %w", err)}
	}
	issue := raw.toIssue()
	return &issue, nil
}

// ListIssueComments returns an issue's comments in creation order.
func (c *Client) ListIssueComments(ctx context.Context, number int) ([]Comment, error) {
	out, err := c.run(ctx, "issue-comments",
		"issue", "view", fmt.Sprintf("%d", number), "-R", c.repo, "--json", "comments")
	if err != nil {
		return nil, err
	}

	var raw struct {
		Comments []ghComment `json:"comments"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &Error{Kind: KindFatal, Op: "issue-comments", Err: fmt.Errorf("bad comments payload: %w", err)}
	}

	comments := make([]Comment, 0, len(raw.Comments))
	for _, g := range raw.Comments {
		comments = append(comments, g.toComment())
	}
	return comments, nil
}

// CreateIssue files a new issue and returns its number.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (int, error) {
	args := []string{"issue", "create", "-R", c.repo, "--title", title, "--body", body}
	for _, l := range labels {
		args = append(args, "--label", l)
	}

	out, err := c.run(ctx, "issue-create", args...)
	if err != nil {
		return 0, err
	}

	number, err := parseNumberFromURL(string(out))
	if err != nil {
		return 0, &Error{Kind: KindFatal, Op: "issue-create", Err: err}
	}

	logging.Tracker("created issue #%d: %s", number, truncate(title, 80))
	logging.Audit().IssueCreated(number, title, labels)
	return number, nil
}

// AddLabels attaches labels to an issue.
func (c *Client) AddLabels(ctx context.Context, number int, labels ...string) error {
	args := []string{"issue", "edit", fmt.Sprintf("%d", number), "-R", c.repo}
	for _, l := range labels {
		args = append(args, "--add-label", l)
	}
	_, err := c.run(ctx, "label-add", args...)
	return err
}

// RemoveLabels detaches labels from an issue.
func (c *Client) RemoveLabels(ctx context.Context, number int, labels ...string) error {
	args := []string{"issue", "edit", fmt.Sprintf("%d", number), "-R", c.repo}
	for _, l := range labels {
		args = append(args, "--remove-label", l)
	}
	_, err := c.run(ctx, "label-remove", args...)
	return err
}

// Comment posts a comment on an issue.
func (c *Client) Comment(ctx context.Context, number int, body string) error {
	_, err := c.run(ctx, "issue-comment",
		"issue", "comment", fmt.Sprintf("%d", number), "-R", c.repo, "--body", body)
	if err != nil {
		return err
	}
	logging.Audit().CommentPosted(number, len(body))
	return nil
}

// CloseIssue closes an issue, optionally with a final comment.
func (c *Client) CloseIssue(ctx context.Context, number int, comment string) error {
	args := []string{"issue", "close", fmt.Sprintf("%d", number), "-R", c.repo}
	if comment != "" {
		args = append(args, "--comment", comment)
	}
	_, err := c.run(ctx, "issue-close", args...)
	if err != nil {
		return err
	}
	logging.Tracker("closed issue #%d", number)
	logging.Audit().IssueClosed(number, comment)
	return nil
}
