package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of an engine failure. The
// HTTP layer maps kinds to status codes; the engine only classifies.
type ErrorKind string

const (
	// ErrKindParse marks malformed, unsupported or oversized input.
	// Fatal, surfaced immediately, never retried.
	ErrKindParse ErrorKind = "parse_error"

	// ErrKindService marks an external rewrite-service failure
	// (timeout, non-2xx, malformed payload). Always recovered via the
	// deterministic fallback; never terminates a run on its own.
	ErrKindService ErrorKind = "service_error"

	// ErrKindCompose marks an internal invariant violation during
	// re-serialization (e.g. page-count mismatch). Indicates an engine
	// defect, not a user error.
	ErrKindCompose ErrorKind = "compose_error"
)

// EngineError carries a kind plus a human-readable detail, wrapping the
// underlying cause for errors.Is/As.
type EngineError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *EngineError) Unwrap() error { return e.Err }

// parseError builds an ErrKindParse EngineError.
func parseError(detail string, err error) error {
	return &EngineError{Kind: ErrKindParse, Detail: detail, Err: err}
}

// serviceError builds an ErrKindService EngineError.
func serviceError(detail string, err error) error {
	return &EngineError{Kind: ErrKindService, Detail: detail, Err: err}
}

// composeError builds an ErrKindCompose EngineError.
func composeError(detail string, err error) error {
	return &EngineError{Kind: ErrKindCompose, Detail: detail, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" if err carries none.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
