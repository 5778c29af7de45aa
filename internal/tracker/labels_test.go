package tracker

import (
	"context"
	"testing"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{LabelProposed, LabelBacklog, true},
		{LabelProposed, LabelRejected, true},
		{LabelProposed, LabelDone, false},
		{LabelBacklog, LabelInProgress, true},
		{LabelBacklog, LabelDone, false},
		{LabelInProgress, LabelDone, true},
		{LabelInProgress, LabelFailed, true},
		{LabelInProgress, LabelBacklog, false},
		{LabelDone, LabelBacklog, false},
		{LabelFailed, LabelInProgress, false},
		{LabelRejected, LabelBacklog, false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, label := range []string{LabelDone, LabelFailed, LabelRejected} {
		if !IsTerminal(label) {
			t.Errorf("IsTerminal(%s) should be true", label)
		}
	}
	for _, label := range []string{LabelProposed, LabelBacklog, LabelInProgress, ""} {
		if IsTerminal(label) {
			t.Errorf("IsTerminal(%s) should be false", label)
		}
	}
}

func TestIsStateLabel(t *testing.T) {
	if !IsStateLabel(LabelBacklog) {
		t.Error("backlog is a state label")
	}
	if IsStateLabel(LabelTaskAnalysis) {
		t.Error("task:analysis is orthogonal, not a state label")
	}
}

// Transition guards fire before any tracker call, so they are testable
// without a binary.
func TestTransition_Guards(t *testing.T) {
	c := New(testTrackerConfig())

	t.Run("terminal state is sticky", func(t *testing.T) {
		issue := &Issue{Number: 1, State: "OPEN", Labels: []string{LabelDone}}
		err := c.Transition(context.Background(), issue, LabelBacklog)
		if !IsStateConflict(err) {
			t.Errorf("expected state conflict, got %v", err)
		}
	})

	t.Run("illegal edge rejected", func(t *testing.T) {
		issue := &Issue{Number: 2, State: "OPEN", Labels: []string{LabelProposed}}
		err := c.Transition(context.Background(), issue, LabelDone)
		if !IsStateConflict(err) {
			t.Errorf("expected state conflict, got %v", err)
		}
	})

	t.Run("closed issue rejected", func(t *testing.T) {
		issue := &Issue{Number: 3, State: "CLOSED", Labels: []string{LabelBacklog}}
		err := c.Transition(context.Background(), issue, LabelInProgress)
		if !IsStateConflict(err) {
			t.Errorf("expected state conflict, got %v", err)
		}
	})

	t.Run("same state is a no-op", func(t *testing.T) {
		issue := &Issue{Number: 4, State: "OPEN", Labels: []string{LabelBacklog}}
		if err := c.Transition(context.Background(), issue, LabelBacklog); err != nil {
			t.Errorf("re-delivered transition should be idempotent, got %v", err)
		}
		count := 0
		for _, l := range issue.Labels {
			if l == LabelBacklog {
				count++
			}
		}
		if count != 1 {
			t.Errorf("labels duplicated: %v", issue.Labels)
		}
	})
}

func TestIssueHelpers(t *testing.T) {
	issue := &Issue{
		Number: 9,
		Labels: []string{LabelBacklog, LabelTaskAnalysis, LabelPriorityHigh},
	}

	if !issue.HasLabel(LabelTaskAnalysis) {
		t.Error("HasLabel miss")
	}
	if issue.HasLabel(LabelTaskCodeChange) {
		t.Error("HasLabel false positive")
	}
	if got := issue.StateLabel(); got != LabelBacklog {
		t.Errorf("StateLabel() = %s, want %s", got, LabelBacklog)
	}
	if got := issue.Priority(); got != LabelPriorityHigh {
		t.Errorf("Priority() = %s, want %s", got, LabelPriorityHigh)
	}

	bare := &Issue{Number: 10, Labels: []string{LabelTaskAnalysis}}
	if got := bare.StateLabel(); got != "" {
		t.Errorf("StateLabel() on unlabeled issue = %s, want empty", got)
	}
	if got := bare.Priority(); got != "" {
		t.Errorf("Priority() on unlabeled issue = %s, want empty", got)
	}
}
