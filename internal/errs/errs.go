// Package errs defines the six error kinds shared across every layer of
// the orchestration core, each carrying a machine-readable code and an
// HTTP-status hint.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the six top-level error categories the core raises.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindConstraint Kind = "constraint"
	KindStorage    Kind = "storage"
	KindIdentity   Kind = "identity"
)

// HTTPStatus returns the HTTP-status hint associated with a Kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindConstraint:
		return 422
	case KindStorage:
		return 500
	case KindIdentity:
		return 401
	default:
		return 500
	}
}

// Code is a specific, stable, machine-readable error code within a Kind.
type Code string

const (
	CodeInvalidInput     Code = "InvalidInput"
	CodeInvalidTag       Code = "InvalidTag"
	CodeInvalidTimestamp Code = "InvalidTimestamp"
	CodeInvalidMetadata  Code = "InvalidMetadata"
	CodeInvalidID        Code = "InvalidId"

	CodeNotFound       Code = "NotFound"
	CodeEntityNotFound Code = "EntityNotFound"

	CodeAlreadyExists  Code = "AlreadyExists"
	CodeCycleDetected  Code = "CycleDetected"

	CodeImmutable     Code = "Immutable"
	CodeHasDependents Code = "HasDependents"

	CodeDatabaseError    Code = "DatabaseError"
	CodeMigrationFailed  Code = "MigrationFailed"
	CodeIntegrityFailure Code = "IntegrityFailure"
)

// Error is the error type returned by every layer of the core. It wraps
// an underlying cause (often a driver-level error) with an operation
// label and a machine-readable Kind/Code pair.
type Error struct {
	Kind Kind
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error for the given kind/code, wrapping err (which
// may be nil) with operation context.
func New(kind Kind, code Code, op string, err error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

func NotFound(op string, err error) *Error {
	return New(KindNotFound, CodeNotFound, op, err)
}

func AlreadyExists(op string, err error) *Error {
	return New(KindConflict, CodeAlreadyExists, op, err)
}

func CycleDetected(op string, err error) *Error {
	return New(KindConflict, CodeCycleDetected, op, err)
}

func Immutable(op string, err error) *Error {
	return New(KindConstraint, CodeImmutable, op, err)
}

func HasDependents(op string, err error) *Error {
	return New(KindConstraint, CodeHasDependents, op, err)
}

func Validation(op string, code Code, err error) *Error {
	return New(KindValidation, code, op, err)
}

func Storage(op string, code Code, err error) *Error {
	return New(KindStorage, code, op, err)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HasCode reports whether err carries the given Code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
