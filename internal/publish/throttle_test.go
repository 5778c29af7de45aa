package publish

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestThrottle(t *testing.T) *Throttle {
	t.Helper()
	return NewThrottle(filepath.Join(t.TempDir(), "analysis_state.json"), 2, 2*time.Hour)
}

func TestThrottleDailyCap(t *testing.T) {
	th := newTestThrottle(t)

	if !th.Allowed(t0) {
		t.Fatal("fresh throttle should allow")
	}
	if err := th.Record(t0); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := th.Record(t0.Add(3 * time.Hour)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Two runs today with perDay=2: blocked even after the gap.
	if th.Allowed(t0.Add(6 * time.Hour)) {
		t.Error("daily cap reached, should be blocked")
	}

	// Next day the count resets.
	if !th.Allowed(t0.Add(26 * time.Hour)) {
		t.Error("next day should allow again")
	}
}

func TestThrottleMinimumGap(t *testing.T) {
	th := newTestThrottle(t)

	if err := th.Record(t0); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if th.Allowed(t0.Add(30 * time.Minute)) {
		t.Error("30m after a run should be inside the 2h gap")
	}
	if !th.Allowed(t0.Add(2 * time.Hour)) {
		t.Error("2h after a run should be allowed")
	}
}

func TestThrottleGapSpansMidnight(t *testing.T) {
	th := newTestThrottle(t)

	late := time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC)
	if err := th.Record(late); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// New day resets the count but the gap still binds.
	if th.Allowed(late.Add(time.Hour)) {
		t.Error("one hour after a run should be blocked, even across midnight")
	}
	if !th.Allowed(late.Add(3 * time.Hour)) {
		t.Error("past the gap on the next day should be allowed")
	}
}

func TestThrottleCorruptStateNeverBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_state.json")
	if err := os.WriteFile(path, []byte("???"), 0o644); err != nil {
		t.Fatal(err)
	}
	th := NewThrottle(path, 2, 2*time.Hour)
	if !th.Allowed(t0) {
		t.Error("corrupt state file must not wedge the throttle shut")
	}
	if err := th.Record(t0); err != nil {
		t.Fatalf("Record() over corrupt state error = %v", err)
	}
	if th.Allowed(t0.Add(time.Minute)) {
		t.Error("Record should have rewritten a working state file")
	}
}
