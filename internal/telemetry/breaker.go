package telemetry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"autogov/internal/logging"
	"autogov/internal/tracker"
)

// IssueFiler is the tracker surface the breaker needs.
type IssueFiler interface {
	ListOpenIssues(ctx context.Context, labels ...string) ([]tracker.Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (int, error)
}

// Finding is one recurring failure pattern that crossed the threshold.
type Finding struct {
	Phase             string
	Kind              string
	NormalizedMessage string
	Count             int
}

// Title derives the stability issue title for this finding. The title
// is the idempotence key: one open issue per triple.
func (f Finding) Title() string {
	return fmt.Sprintf("[stability] %s/%s: %s", f.Phase, f.Kind, clip(f.NormalizedMessage, 80))
}

// Body renders the issue body.
func (f Finding) Body() string {
	return fmt.Sprintf(
		"Recurring failure detected by the circuit breaker.\n\n"+
			"- Phase: `%s`\n- Error kind: `%s`\n- Normalized message: `%s`\n- Occurrences in window: %d\n\n"+
			"Investigate the failing phase and harden it. Filed mechanically; no agent was involved.",
		f.Phase, f.Kind, f.NormalizedMessage, f.Count)
}

// Breaker inspects recent telemetry and files one stability issue per
// recurring (phase, kind, normalized message) triple.
type Breaker struct {
	journal   *Journal
	filer     IssueFiler
	window    int
	threshold int
}

// NewBreaker creates a breaker over the journal's trailing window.
func NewBreaker(journal *Journal, filer IssueFiler, window, threshold int) *Breaker {
	return &Breaker{
		journal:   journal,
		filer:     filer,
		window:    window,
		threshold: threshold,
	}
}

// Check scans the last window records and files issues for findings not
// already on file. Purely mechanical. Returns the numbers of issues it
// created.
func (b *Breaker) Check(ctx context.Context) ([]int, error) {
	records, err := b.journal.LastCycles(b.window)
	if err != nil {
		return nil, fmt.Errorf("breaker read telemetry: %w", err)
	}

	findings := FindRecurring(records, b.threshold)
	if len(findings) == 0 {
		return nil, nil
	}

	open, err := b.filer.ListOpenIssues(ctx, tracker.LabelPriorityHigh)
	if err != nil {
		return nil, fmt.Errorf("breaker list open issues: %w", err)
	}
	existing := make(map[string]bool, len(open))
	for _, issue := range open {
		existing[issue.Title] = true
	}

	var created []int
	for _, f := range findings {
		title := f.Title()
		if existing[title] {
			logging.TelemetryDebug("breaker: issue already open for %q", title)
			continue
		}
		number, err := b.filer.CreateIssue(ctx, title, f.Body(), []string{
			tracker.LabelPriorityHigh,
			tracker.LabelBacklog,
			tracker.LabelTaskCodeChange,
		})
		if err != nil {
			return created, fmt.Errorf("breaker file issue: %w", err)
		}
		logging.Telemetry("breaker filed issue #%d: %s", number, title)
		created = append(created, number)
	}
	return created, nil
}

// FindRecurring counts failure triples across the given records and
// returns those at or above the threshold, in first-seen order.
func FindRecurring(records []CycleTelemetry, threshold int) []Finding {
	counts := make(map[Finding]int)
	var order []Finding

	for _, rec := range records {
		for _, phase := range rec.Phases {
			if phase.Error == nil {
				continue
			}
			key := Finding{
				Phase:             phase.Phase,
				Kind:              phase.Error.Kind,
				NormalizedMessage: NormalizeMessage(phase.Error.Message),
			}
			if counts[key] == 0 {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	var findings []Finding
	for _, key := range order {
		if counts[key] >= threshold {
			key.Count = counts[key]
			findings = append(findings, key)
		}
	}
	return findings
}

var digitRunRe = regexp.MustCompile(`\d+`)
var spaceRunRe = regexp.MustCompile(`\s+`)

// NormalizeMessage folds an error message so occurrences differing only
// in numerals (cycle numbers, issue numbers, durations) count as the
// same failure.
func NormalizeMessage(msg string) string {
	s := strings.ToLower(strings.TrimSpace(msg))
	s = digitRunRe.ReplaceAllString(s, "N")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return clip(s, 160)
}

func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
