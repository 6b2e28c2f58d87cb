package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure emitted by the core. The set is closed: every
// error that crosses the orchestrator boundary carries exactly one of these.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindRateLimited        Kind = "rate_limited"
	KindLoginRequired      Kind = "login_required"
	KindAgeRestricted      Kind = "age_restricted"
	KindEndpointOverridden Kind = "endpoint_overridden"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindNoPathAvailable    Kind = "no_path_available"
	KindUpstream           Kind = "upstream_error"
)

// Error is a classified failure. It wraps an optional cause so callers can
// use errors.Is/errors.As while the orchestrator dispatches on Kind alone.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors report KindUpstream so callers always see a member of the closed set.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsBlocking reports whether a kind indicates the upstream blocked the
// request path (anti-bot response). Blocking failures mark egress paths and
// are cached under the short TTL class.
func IsBlocking(kind Kind) bool {
	switch kind {
	case KindRateLimited, KindLoginRequired:
		return true
	default:
		return false
	}
}

// IsCacheable reports whether a failure should be remembered as a short-lived
// negative cache entry so repeated requests fail fast instead of hammering
// the upstream.
func IsCacheable(kind Kind) bool {
	switch kind {
	case KindNotFound, KindRateLimited, KindLoginRequired, KindAgeRestricted:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a caller may reasonably retry later without
// changing parameters. Everything else requires waiting out a window or a
// policy change.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindUpstream, KindNoPathAvailable:
		return true
	default:
		return false
	}
}
