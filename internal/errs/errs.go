// Package errs defines the error taxonomy shared by the extraction,
// analysis, and persistence layers. Every error carries a stable
// correlation identifier so a failure can be traced across log lines.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies an error for routing and retry decisions.
type Kind int

const (
	Internal Kind = iota
	UnsupportedFormat
	ExtractionFailed
	InputTooLarge
	EmptyInput
	ServiceUnavailable
	MalformedOutput
	PreconditionFailed
	NotFoundOrUnauthorized
	VersionConflict
	InvalidRequest
)

var kindCodes = map[Kind]string{
	Internal:               "INTERNAL",
	UnsupportedFormat:      "UNSUPPORTED_FORMAT",
	ExtractionFailed:       "EXTRACTION_FAILED",
	InputTooLarge:          "INPUT_TOO_LARGE",
	EmptyInput:             "EMPTY_INPUT",
	ServiceUnavailable:     "SERVICE_UNAVAILABLE",
	MalformedOutput:        "MALFORMED_OUTPUT",
	PreconditionFailed:     "PRECONDITION_FAILED",
	NotFoundOrUnauthorized: "NOT_FOUND_OR_UNAUTHORIZED",
	VersionConflict:        "VERSION_CONFLICT",
	InvalidRequest:         "INVALID_REQUEST",
}

// Code returns the stable string code for the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[Internal]
}

// Error is the domain error type. Construct with New or Wrap.
type Error struct {
	kind          Kind
	msg           string
	correlationID string
	details       map[string]any
	cause         error
}

// New creates a domain error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{
		kind:          kind,
		msg:           msg,
		correlationID: newCorrelationID(),
	}
}

// Newf creates a domain error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates a domain error of the given kind around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	e := New(kind, msg)
	e.cause = cause
	return e
}

// WithDetail attaches a key/value pair for diagnostics and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.Code())
	b.WriteString(" [")
	b.WriteString(e.correlationID)
	b.WriteString("]: ")
	b.WriteString(e.msg)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// Kind reports the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// CorrelationID returns the stable identifier attached at creation time.
func (e *Error) CorrelationID() string { return e.correlationID }

// Details returns the attached diagnostic key/value pairs, possibly nil.
func (e *Error) Details() map[string]any { return e.details }

// KindOf extracts the Kind from err, or Internal when err is not a
// domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}

// IsKind reports whether err (or anything it wraps) is a domain error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}

// CorrelationID extracts the correlation id from err, or "" when err is
// not a domain error.
func CorrelationID(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.correlationID
	}
	return ""
}

// IsRetryable reports whether retrying the same request could succeed.
// Only transient external-service failures qualify; in particular a
// MalformedOutput is never retryable.
func IsRetryable(err error) bool {
	return IsKind(err, ServiceUnavailable)
}

// CallerFault reports whether the error is fixable by the caller rather
// than by the system.
func CallerFault(err error) bool {
	switch KindOf(err) {
	case UnsupportedFormat, InputTooLarge, EmptyInput, PreconditionFailed,
		NotFoundOrUnauthorized, VersionConflict, InvalidRequest:
		return true
	}
	return false
}

func newCorrelationID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "req_" + id[:12]
}
