package memtx

import (
	"errors"
	"fmt"
)

// Code identifies a client-visible error category (§6 External Interfaces).
type Code int

const (
	// CodeUnknown is the zero value; never returned by this package.
	CodeUnknown Code = iota
	// CodeNullablePrimary is returned when a primary-key part is declared nullable.
	CodeNullablePrimary
	// CodeUnsupported is returned for a request the engine has no handling for.
	CodeUnsupported
	// CodeModifyIndex is returned when an index-def violates a type constraint.
	CodeModifyIndex
	// CodeIndexType is returned for an unknown or disallowed index type.
	CodeIndexType
	// CodeCantUpdatePrimaryKey is returned when UPDATE would change the primary
	// key; for UPSERT the same condition is only logged.
	CodeCantUpdatePrimaryKey
	// CodeUnknownRequestType is returned for an unrecognized DML opcode.
	CodeUnknownRequestType
	// CodeInjection is returned by the fault-injection hook (see FaultInjector).
	CodeInjection
	// CodeDuplicateKey is returned by an index on a uniqueness collision.
	CodeDuplicateKey
	// CodeNotFound is returned by an index when a replace/delete target is absent.
	CodeNotFound
)

func (c Code) String() string {
	switch c {
	case CodeNullablePrimary:
		return "NULLABLE_PRIMARY"
	case CodeUnsupported:
		return "UNSUPPORTED"
	case CodeModifyIndex:
		return "MODIFY_INDEX"
	case CodeIndexType:
		return "INDEX_TYPE"
	case CodeCantUpdatePrimaryKey:
		return "CANT_UPDATE_PRIMARY_KEY"
	case CodeUnknownRequestType:
		return "UNKNOWN_REQUEST_TYPE"
	case CodeInjection:
		return "INJECTION"
	case CodeDuplicateKey:
		return "DUPLICATE_KEY"
	case CodeNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed, client-visible error this engine returns.
// Callers should use [errors.As] to recover the [Code] rather than matching
// on the message text.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Is reports whether target is an [*Error] with the same [Code], so that
// sentinels below can be matched with [errors.Is].
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return other.Code == e.Code
}

// NewError builds an [*Error] with the given code and a formatted reason.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Sentinel values for [errors.Is] checks against well-known codes that carry
// no caller-specific reason.
var (
	// ErrDuplicateKey matches any [*Error] with [CodeDuplicateKey].
	ErrDuplicateKey = &Error{Code: CodeDuplicateKey}
	// ErrNotFound matches any [*Error] with [CodeNotFound].
	ErrNotFound = &Error{Code: CodeNotFound}
	// ErrInjection matches any [*Error] with [CodeInjection].
	ErrInjection = &Error{Code: CodeInjection}
)

// RecoveryViolation is a fatal error: the process embedding this engine
// should abort rather than attempt to continue (§7 "Recovery-violation").
// It is returned, never panicked, so the caller can log context before
// terminating; spec.md treats the underlying condition as a programming
// error, not a recoverable one.
type RecoveryViolation struct {
	Reason string
}

func (e *RecoveryViolation) Error() string {
	return "recovery violation: " + e.Reason
}
