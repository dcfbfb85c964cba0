// Package ingesterr defines the error-kind taxonomy shared across the
// ingestion core (spec.md §7): each collaborator classifies its own
// failures into one of a small set of kinds, and callers branch on the
// kind rather than on error strings.
package ingesterr

import "fmt"

// Kind classifies an error by the handling policy it implies.
type Kind string

const (
	// ConfigMissing means a required dependency (endpoint, credential) was
	// not configured. The caller logs and continues without the dependent
	// producer; health reports degraded.
	ConfigMissing Kind = "CONFIG_MISSING"
	// AuthFail means credentials were rejected. Reconnect/retry stops for
	// the affected collaborator; other collaborators continue.
	AuthFail Kind = "AUTH_FAIL"
	// InvalidInput means a single record failed validation. The record is
	// dropped with a warning; the batch continues.
	InvalidInput Kind = "INVALID_INPUT"
	// Transient means a retryable failure (5xx, timeout, reset, pong
	// timeout). The caller retries or reconnects per its own policy and
	// surfaces only once its budget is exhausted.
	Transient Kind = "TRANSIENT"
	// RateLimit means an HTTP 429. The caller sleeps 60s and retries once;
	// a second 429 is surfaced as Transient.
	RateLimit Kind = "RATE_LIMIT"
	// NotAvailable means the upstream returned 403/404 for a soft-skippable
	// resource (e.g. financials not published yet). The caller logs info
	// and skips.
	NotAvailable Kind = "NOT_AVAILABLE"
	// FatalWriter means the time-series store rejected the writer's
	// credentials. The caller surfaces it; the process degrades.
	FatalWriter Kind = "FATAL_WRITER"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation label.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ie, ok := err.(*Error); ok {
			e = ie
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
