// Package errs provides the unified error type used across aigis.
//
// Every subsystem (engine cache, resolver, executor, credential store, …)
// wraps its native errors into *errs.Error before returning them. Callers use
// the Is* predicates to decide how to react without importing driver packages.
//
// Usage:
//
//	// In a driver adapter, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", pgErr)
//
//	// In a caller, check the kind:
//	if errs.IsNotFound(err) {
//	    return "no such connection"
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no record, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConfiguration            // unsupported kind, missing connection fields
	ErrKindSecret                   // stored secret could not be decrypted
	ErrKindIntrospection            // schema metadata could not be read
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindSecret:
		return "secret"
	case ErrKindIntrospection:
		return "introspection"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all aigis subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a missing record or object.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConfiguration reports whether err is a connection configuration error.
// These are the only errors allowed to escape engine construction.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsSecret reports whether err came from secret decryption.
func IsSecret(err error) bool {
	return KindOf(err) == ErrKindSecret
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// UserMessage renders err for the end user of the agent: a one-line summary
// carrying the driver message, never internal wrapping or stack traces.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "query failed to execute: " + err.Error()
	}
	switch e.Kind {
	case ErrKindNotFound:
		return "no such connection"
	case ErrKindConfiguration:
		return "connection is misconfigured: " + e.Message
	}
	msg := e.Message
	if e.Cause != nil {
		msg = rootMessage(e.Cause)
	}
	return "query failed to execute: " + msg
}

// rootMessage walks past *Error wrappers to the innermost driver message.
func rootMessage(err error) string {
	for {
		var e *Error
		if !errors.As(err, &e) {
			return err.Error()
		}
		if e.Cause == nil {
			return e.Message
		}
		err = e.Cause
	}
}
