package tracker

import (
	"time"
)

// Issue is a transient view of one tracker issue. Views never survive a
// cycle boundary; each cycle re-queries what it needs.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     string
	Labels    []string
	CreatedAt time.Time
}

// HasLabel reports whether the issue carries the named label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// StateLabel returns the issue's lifecycle label, or "" when it has none.
func (i *Issue) StateLabel() string {
	for _, l := range i.Labels {
		if IsStateLabel(l) {
			return l
		}
	}
	return ""
}

// Priority returns the priority label, or "" when unset.
func (i *Issue) Priority() string {
	for _, l := range i.Labels {
		switch l {
		case LabelPriorityCritical, LabelPriorityHigh, LabelPriorityMedium, LabelPriorityLow:
			return l
		}
	}
	return ""
}

// Age returns how long the issue has been open relative to now.
func (i *Issue) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

// Comment is one issue or PR comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// PullRequest is a transient view of one PR.
type PullRequest struct {
	Number    int
	Title     string
	State     string
	Branch    string
	Merged    bool
	MergedAt  time.Time
	CreatedAt time.Time
	URL       string
}

// CIRun is one CI run's outcome on the base branch.
type CIRun struct {
	Name       string
	Status     string
	Conclusion string
	CreatedAt  time.Time
}

// Wire shapes for the gh CLI's --json output.

type ghLabel struct {
	Name string `json:"name"`
}

type ghIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Labels    []ghLabel `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g ghIssue) toIssue() Issue {
	labels := make([]string, 0, len(g.Labels))
	for _, l := range g.Labels {
		labels = append(labels, l.Name)
	}
	return Issue{
		Number:    g.Number,
		Title:     g.Title,
		Body:      g.Body,
		State:     g.State,
		Labels:    labels,
		CreatedAt: g.CreatedAt,
	}
}

type ghComment struct {
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g ghComment) toComment() Comment {
	return Comment{
		Author:    g.Author.Login,
		Body:      g.Body,
		CreatedAt: g.CreatedAt,
	}
}

type ghPR struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	State       string    `json:"state"`
	HeadRefName string    `json:"headRefName"`
	MergedAt    time.Time `json:"mergedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	URL         string    `json:"url"`
}

func (g ghPR) toPR() PullRequest {
	return PullRequest{
		Number:    g.Number,
		Title:     g.Title,
		State:     g.State,
		Branch:    g.HeadRefName,
		Merged:    !g.MergedAt.IsZero(),
		MergedAt:  g.MergedAt,
		CreatedAt: g.CreatedAt,
		URL:       g.URL,
	}
}

type ghRun struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (g ghRun) toRun() CIRun {
	return CIRun{
		Name:       g.Name,
		Status:     g.Status,
		Conclusion: g.Conclusion,
		CreatedAt:  g.CreatedAt,
	}
}
