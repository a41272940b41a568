// Package errs defines the error kinds every host boundary reports.
//
// Components return *Error values (or wrap them with %w). Callers classify with
// KindOf and never parse messages. The presentation layer renders any error as
// {kind, message} using KindOf and Message.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for external callers
type Kind string

const (
	KindPermissionDenied  Kind = "PermissionDenied"
	KindRateLimitExceeded Kind = "RateLimitExceeded"
	KindInvalidConfig     Kind = "InvalidConfig"
	KindInstanceCrashed   Kind = "InstanceCrashed"
	KindNotFound          Kind = "NotFound"
	KindStorageError      Kind = "StorageError"
	KindCapacityExceeded  Kind = "CapacityExceeded"
	KindInternal          Kind = "Internal"
)

// Error is a classified host error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human readable part of err without the kind prefix
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}
