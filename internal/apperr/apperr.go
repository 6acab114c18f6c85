// Package apperr defines the engine's error taxonomy. Services return these
// kinds; transports map them to status codes. State-machine and sampling
// errors are always surfaced verbatim, never swallowed or retried.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an engine error.
type Kind int

const (
	// KindNotFound covers absent entities and access-scope mismatches.
	// The two are deliberately conflated to avoid leaking existence.
	KindNotFound Kind = iota + 1
	// KindForbidden covers valid entities with disallowed action/timing/role.
	KindForbidden
	// KindConflict covers state-machine violations: double submission,
	// overlapping proctor assignment, deleting a live session.
	KindConflict
	// KindValidation covers malformed input caught before any state machine
	// is touched.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Rejection subcodes. A kind tells the transport which status to send; the
// subcode tells the client which lifecycle rule fired. Only the attempt
// engine's timing and state rejections carry one.
const (
	CodeWindowNotOpen    = "window_not_open"
	CodeWindowClosed     = "window_closed"
	CodeAlreadySubmitted = "already_submitted"
	CodeAttemptLocked    = "attempt_locked"
)

// Error is a kinded engine error.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is makes errors.Is match any error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden returns a KindForbidden error.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// ForbiddenCode returns a KindForbidden error carrying a rejection subcode.
func ForbiddenCode(code, format string, args ...any) error {
	return &Error{Kind: KindForbidden, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, or 0 when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c *AssignmentConflictError
	if errors.As(err, &c) {
		return KindConflict
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf extracts the rejection subcode from err, or "" when it carries
// none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ShortfallError reports that sampling could not reach the requested
// question count. Carries both counts so the caller can decide whether to
// proceed with fewer questions or abort.
type ShortfallError struct {
	Requested int
	Obtained  int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("question pool exhausted: requested %d, obtained %d", e.Requested, e.Obtained)
}

// AssignmentConflictError reports an overlapping proctor assignment.
type AssignmentConflictError struct {
	ConflictingSessionID uuid.UUID
}

func (e *AssignmentConflictError) Error() string {
	return fmt.Sprintf("proctor already assigned to overlapping session %s", e.ConflictingSessionID)
}

// Is makes errors.Is(err, apperr.Conflict("")) style matching work.
func (e *AssignmentConflictError) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == KindConflict
	}
	return false
}
