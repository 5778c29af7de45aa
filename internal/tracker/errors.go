package tracker

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies tracker failures. Values are recorded verbatim in
// telemetry.
type Kind string

const (
	// KindTransient covers network faults, 5xx responses, and rate
	// limits. Retried with backoff; becomes KindFatal on exhaustion.
	KindTransient Kind = "tracker_transient"

	// KindFatal covers non-retriable responses (4xx other than rate
	// limit) and exhausted retries.
	KindFatal Kind = "tracker_fatal"

	// KindStateConflict means a label-transition precondition did not
	// hold (already closed, terminal state, illegal edge). Never retried.
	KindStateConflict Kind = "state_conflict"

	// KindDuplicate marks an intake id that already exists. Callers skip
	// silently; the kind exists so telemetry can still name it.
	KindDuplicate Kind = "duplicate_decision"
)

// Error is the structured tracker failure.
type Error struct {
	Kind Kind
	Op   string

	// RetryAfter is the server-requested delay when rate limited.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tracker %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("tracker %s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind from err, or "" for non-tracker errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsTransient reports whether err would be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsStateConflict reports whether err is a failed transition guard.
func IsStateConflict(err error) bool {
	return KindOf(err) == KindStateConflict
}
