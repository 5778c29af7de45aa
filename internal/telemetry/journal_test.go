package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	dir := t.TempDir()
	return NewJournal(
		filepath.Join(dir, "telemetry.jsonl"),
		filepath.Join(dir, "errors.jsonl"),
		30,
	)
}

func TestAppendCycle_ProductiveFollowsYield(t *testing.T) {
	j := newTestJournal(t)

	records := []*CycleTelemetry{
		{CycleNumber: 1, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(), YieldKind: YieldNone},
		{CycleNumber: 2, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(), YieldKind: YieldPRMerged},
		{CycleNumber: 3, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(), YieldKind: YieldAnalysisPublished},
		{CycleNumber: 4, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC()},
	}
	for _, rec := range records {
		if err := j.AppendCycle(rec); err != nil {
			t.Fatalf("AppendCycle() error = %v", err)
		}
	}

	got, err := j.LastCycles(10)
	if err != nil {
		t.Fatalf("LastCycles() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}

	wantProductive := []bool{false, true, true, false}
	for i, rec := range got {
		if rec.Productive != wantProductive[i] {
			t.Errorf("record %d: productive = %v, want %v", i, rec.Productive, wantProductive[i])
		}
		if rec.EndedAt.Before(rec.StartedAt) {
			t.Errorf("record %d: ended_at before started_at", i)
		}
	}
	if got[3].YieldKind != YieldNone {
		t.Errorf("empty yield kind should default to none, got %s", got[3].YieldKind)
	}
}

func TestCycleRecord_RoundTrip(t *testing.T) {
	j := newTestJournal(t)

	rec := &CycleTelemetry{
		CycleNumber: 7,
		StartedAt:   time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2026, 3, 10, 8, 4, 30, 0, time.UTC),
		Phases: []CyclePhaseResult{
			{Phase: "fetch_news", OK: true, DurationMs: 42000, Detail: "2 items"},
			{Phase: "pick_and_execute", OK: false, DurationMs: 12000,
				Error: &PhaseError{Kind: "agent_timeout", Message: "wall clock 5m0s exceeded"}},
		},
		ConductorReasoning: "backlog is deep, execute first",
		ConductorActions:   []string{"fetch_news", "pick_and_execute", "cooldown"},
		YieldKind:          YieldNone,
	}
	if err := j.AppendCycle(rec); err != nil {
		t.Fatalf("AppendCycle() error = %v", err)
	}

	got, err := j.LastCycles(1)
	if err != nil {
		t.Fatalf("LastCycles() error = %v", err)
	}
	if diff := cmp.Diff(*rec, got[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLastCycles_SkipsTornTrailingLine(t *testing.T) {
	j := newTestJournal(t)

	for i := 1; i <= 3; i++ {
		rec := &CycleTelemetry{CycleNumber: i, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC()}
		if err := j.AppendCycle(rec); err != nil {
			t.Fatalf("AppendCycle() error = %v", err)
		}
	}

	// Simulate a crash mid-write.
	f, err := os.OpenFile(j.telemetryPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"cycle_number": 4, "started`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := j.LastCycles(10)
	if err != nil {
		t.Fatalf("LastCycles() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3 (torn line skipped)", len(got))
	}
	if got[2].CycleNumber != 3 {
		t.Errorf("last record = %d, want 3", got[2].CycleNumber)
	}
}

func TestLastCycles_WindowLimit(t *testing.T) {
	j := newTestJournal(t)
	for i := 1; i <= 8; i++ {
		if err := j.AppendCycle(&CycleTelemetry{CycleNumber: i, StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC()}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.LastCycles(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].CycleNumber != 6 || got[2].CycleNumber != 8 {
		t.Errorf("window = [%d..%d], want [6..8]", got[0].CycleNumber, got[2].CycleNumber)
	}
}

func TestLastCycles_MissingFile(t *testing.T) {
	j := newTestJournal(t)
	got, err := j.LastCycles(5)
	if err != nil {
		t.Fatalf("missing journal should read as empty, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}

func TestAppendError_ReadBack(t *testing.T) {
	j := newTestJournal(t)

	entries := []*ErrorEntry{
		{Cycle: 1, Phase: "debate", Kind: "agent_empty", Message: "no text in agent output"},
		{Cycle: 2, Phase: "pick_and_execute", Kind: "tracker_fatal", Message: "HTTP 404"},
	}
	for _, e := range entries {
		if err := j.AppendError(e); err != nil {
			t.Fatalf("AppendError() error = %v", err)
		}
	}

	got, err := j.LastErrors(10)
	if err != nil {
		t.Fatalf("LastErrors() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Kind != "agent_empty" || got[1].Phase != "pick_and_execute" {
		t.Errorf("entries = %+v", got)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled on append")
	}
}

func TestPrune(t *testing.T) {
	j := newTestJournal(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	old := &CycleTelemetry{CycleNumber: 1, StartedAt: now.AddDate(0, 0, -45), EndedAt: now.AddDate(0, 0, -45)}
	fresh := &CycleTelemetry{CycleNumber: 2, StartedAt: now.AddDate(0, 0, -5), EndedAt: now.AddDate(0, 0, -5)}
	for _, rec := range []*CycleTelemetry{old, fresh} {
		if err := j.AppendCycle(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.AppendError(&ErrorEntry{Timestamp: now.AddDate(0, 0, -40), Cycle: 1, Kind: "agent_timeout", Message: "old"}); err != nil {
		t.Fatal(err)
	}

	if err := j.Prune(now); err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	cycles, err := j.LastCycles(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 1 || cycles[0].CycleNumber != 2 {
		t.Errorf("after prune cycles = %+v, want only cycle 2", cycles)
	}

	errs, err := j.LastErrors(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 0 {
		t.Errorf("after prune errors = %+v, want empty", errs)
	}
}

func TestPrune_OncePerDay(t *testing.T) {
	j := newTestJournal(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	if err := j.AppendCycle(&CycleTelemetry{CycleNumber: 1, StartedAt: now.AddDate(0, 0, -45), EndedAt: now.AddDate(0, 0, -45)}); err != nil {
		t.Fatal(err)
	}
	if err := j.Prune(now); err != nil {
		t.Fatal(err)
	}

	// A record older than retention appended after today's prune must
	// survive until tomorrow's.
	if err := j.AppendCycle(&CycleTelemetry{CycleNumber: 2, StartedAt: now.AddDate(0, 0, -60), EndedAt: now.AddDate(0, 0, -60)}); err != nil {
		t.Fatal(err)
	}
	if err := j.Prune(now.Add(2 * time.Hour)); err != nil {
		t.Fatal(err)
	}
	cycles, _ := j.LastCycles(10)
	if len(cycles) != 1 {
		t.Fatalf("same-day prune should be a no-op, got %d records", len(cycles))
	}

	if err := j.Prune(now.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	cycles, _ = j.LastCycles(10)
	if len(cycles) != 0 {
		t.Errorf("next-day prune should drop the stale record, got %d", len(cycles))
	}
}
