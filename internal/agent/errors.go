package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies agent subprocess failures. The string values are
// recorded verbatim in telemetry, so they are stable.
type ErrorKind string

const (
	// KindTimeout means the subprocess exceeded its wall-clock budget.
	KindTimeout ErrorKind = "agent_timeout"

	// KindExecError means spawn failure or non-zero exit.
	KindExecError ErrorKind = "agent_exec_error"

	// KindEmpty means the subprocess succeeded but produced no usable text.
	KindEmpty ErrorKind = "agent_empty"

	// KindParseError means the output did not conform to the expected schema.
	KindParseError ErrorKind = "agent_parse_error"
)

// Error is the structured failure returned by the runner and the JSON
// decoding helpers. Callers detect it with errors.As.
type Error struct {
	Kind ErrorKind
	Role Role

	// Partial holds whatever assistant text was recovered before the
	// failure. Set for timeouts so callers can log what the agent managed
	// to say.
	Partial string

	// Elapsed is how long the subprocess ran before failing.
	Elapsed time.Duration

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.Role, e.Kind, e.Err)
	}
	return fmt.Sprintf("agent %s: %s", e.Role, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind from err, or "" when err is not an
// agent error.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsTimeout reports whether err is an agent timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsParseError reports whether err is a schema parse failure.
func IsParseError(err error) bool {
	return KindOf(err) == KindParseError
}
