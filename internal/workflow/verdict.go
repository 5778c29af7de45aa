package workflow

import (
	"strings"
	"time"

	"autogov/internal/tracker"
)

// Verdict is the reviewer's structured decision.
type Verdict string

const (
	VerdictApproved         Verdict = "APPROVED"
	VerdictChangesRequested Verdict = "CHANGES_REQUESTED"
)

const (
	markerApproved         = "VERDICT: APPROVED"
	markerChangesRequested = "VERDICT: CHANGES_REQUESTED"
)

// ExtractVerdict scans comments newest-first for a verdict marker,
// ignoring anything posted at or before since so a stale verdict from an
// earlier round can never approve the current one. A comment carrying
// both markers counts as changes requested.
func ExtractVerdict(comments []tracker.Comment, since time.Time) (Verdict, string, bool) {
	for i := len(comments) - 1; i >= 0; i-- {
		c := comments[i]
		if !c.CreatedAt.After(since) {
			continue
		}
		if strings.Contains(c.Body, markerChangesRequested) {
			return VerdictChangesRequested, c.Body, true
		}
		if strings.Contains(c.Body, markerApproved) {
			return VerdictApproved, c.Body, true
		}
	}
	return "", "", false
}
