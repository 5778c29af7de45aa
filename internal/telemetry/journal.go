package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autogov/internal/logging"
)

// Journal owns the telemetry and errors JSONL files. Appends are one
// buffered line per record written with a single O_APPEND write, so a
// crash mid-cycle leaves at most one damaged trailing line, which the
// readers tolerate.
type Journal struct {
	telemetryPath string
	errorsPath    string
	retentionDays int

	mu        sync.Mutex
	lastPrune time.Time
}

// NewJournal creates a journal writing to the given files.
func NewJournal(telemetryPath, errorsPath string, retentionDays int) *Journal {
	return &Journal{
		telemetryPath: telemetryPath,
		errorsPath:    errorsPath,
		retentionDays: retentionDays,
	}
}

// AppendCycle writes one cycle record. The productive flag is derived
// from yield_kind here so the invariant holds for every line ever
// written.
func (j *Journal) AppendCycle(rec *CycleTelemetry) error {
	if rec.YieldKind == "" {
		rec.YieldKind = YieldNone
	}
	rec.Productive = rec.YieldKind != YieldNone

	if err := j.appendLine(j.telemetryPath, rec); err != nil {
		return fmt.Errorf("append telemetry: %w", err)
	}
	logging.Telemetry("cycle %d recorded: yield=%s productive=%v phases=%d",
		rec.CycleNumber, rec.YieldKind, rec.Productive, len(rec.Phases))
	return nil
}

// AppendError writes one structured error line.
func (j *Journal) AppendError(e *ErrorEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := j.appendLine(j.errorsPath, e); err != nil {
		return fmt.Errorf("append error entry: %w", err)
	}
	return nil
}

// appendLine marshals v and appends it as one line in a single write.
func (j *Journal) appendLine(path string, v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// LastCycles returns up to n most recent cycle records, oldest first.
// Unparseable lines (a crash's torn trailing line) are skipped.
func (j *Journal) LastCycles(n int) ([]CycleTelemetry, error) {
	var records []CycleTelemetry
	err := readJSONL(j.telemetryPath, func(line []byte) {
		var rec CycleTelemetry
		if uerr := json.Unmarshal(line, &rec); uerr != nil {
			logging.TelemetryDebug("skipping bad telemetry line (%d bytes)", len(line))
			return
		}
		records = append(records, rec)
	})
	if err != nil {
		return nil, err
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// LastErrors returns up to n most recent error entries, oldest first.
func (j *Journal) LastErrors(n int) ([]ErrorEntry, error) {
	var entries []ErrorEntry
	err := readJSONL(j.errorsPath, func(line []byte) {
		var e ErrorEntry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			logging.TelemetryDebug("skipping bad error line (%d bytes)", len(line))
			return
		}
		entries = append(entries, e)
	})
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Prune drops journal lines older than the retention window. Runs at
// most once per calendar day no matter how often it is called.
func (j *Journal) Prune(now time.Time) error {
	j.mu.Lock()
	if sameDay(j.lastPrune, now) {
		j.mu.Unlock()
		return nil
	}
	j.lastPrune = now
	j.mu.Unlock()

	cutoff := now.AddDate(0, 0, -j.retentionDays)

	kept, dropped, err := pruneFile(j.telemetryPath, func(line []byte) bool {
		var rec CycleTelemetry
		if uerr := json.Unmarshal(line, &rec); uerr != nil {
			return false
		}
		return rec.StartedAt.After(cutoff)
	})
	if err != nil {
		return fmt.Errorf("prune telemetry: %w", err)
	}
	if dropped > 0 {
		logging.Telemetry("pruned telemetry: kept %d, dropped %d lines older than %d days",
			kept, dropped, j.retentionDays)
	}

	kept, dropped, err = pruneFile(j.errorsPath, func(line []byte) bool {
		var e ErrorEntry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			return false
		}
		return e.Timestamp.After(cutoff)
	})
	if err != nil {
		return fmt.Errorf("prune errors: %w", err)
	}
	if dropped > 0 {
		logging.Telemetry("pruned errors: kept %d, dropped %d lines", kept, dropped)
	}
	return nil
}

// readJSONL streams each non-empty line of path into fn. A missing file
// reads as empty.
func readJSONL(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	return scanner.Err()
}

// pruneFile rewrites path keeping only lines where keep returns true.
// The rewrite goes through a temp file and rename so readers never see a
// half-written journal.
func pruneFile(path string, keep func(line []byte) bool) (kept, dropped int, err error) {
	var out bytes.Buffer
	err = readJSONL(path, func(line []byte) {
		if keep(line) {
			out.Write(line)
			out.WriteByte('\n')
			kept++
		} else {
			dropped++
		}
	})
	if err != nil {
		return 0, 0, err
	}
	if dropped == 0 {
		return kept, 0, nil
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0644); err != nil {
		return 0, 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, 0, err
	}
	return kept, dropped, nil
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
