package workflow

import (
	"regexp"
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Fix retry logic", "fix-retry-logic"},
		{"mixed case", "Add CI Badge", "add-ci-badge"},
		{"punctuation collapses", "Handle 429s (rate limits)!!", "handle-429s-rate-limits"},
		{"leading and trailing noise", "  --Fix it--  ", "fix-it"},
		{"non-ascii only", "Νέα ανάλυση", "task"},
		{"empty", "", "task"},
		{"clipped at limit", strings.Repeat("long words here ", 10), "long-words-here-long-words-here-long-wor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Slug(tt.title, slugMaxLen)
			if got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
			}
			if len(got) > slugMaxLen {
				t.Errorf("Slug(%q) length %d exceeds %d", tt.title, len(got), slugMaxLen)
			}
			if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
				t.Errorf("Slug(%q) = %q has a dangling dash", tt.title, got)
			}
		})
	}
}

var branchRe = regexp.MustCompile(`^ai-dev/[a-z0-9][a-z0-9-]*-[0-9a-f]{8}$`)

func TestBranchName(t *testing.T) {
	name := BranchName("Improve retry logging")
	if !branchRe.MatchString(name) {
		t.Errorf("BranchName = %q, want shape %s", name, branchRe)
	}
	if !strings.HasPrefix(name, "ai-dev/improve-retry-logging-") {
		t.Errorf("BranchName = %q, want slug prefix", name)
	}

	// Two names for the same title must never collide.
	if other := BranchName("Improve retry logging"); other == name {
		t.Errorf("BranchName produced duplicate %q", name)
	}
}
