package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport status.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindInvalidRequest     Kind = "invalid_request"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindDuplicateRequest   Kind = "duplicate_request"
	KindInvalidState       Kind = "invalid_state"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Error is the typed result every domain operation fails with.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Code is the stable machine-readable identifier exposed to clients.
func (e *Error) Code() string {
	return string(e.Kind)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }

func InvalidRequest(message string) *Error { return New(KindInvalidRequest, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func DuplicateRequest(message string) *Error { return New(KindDuplicateRequest, message) }

func InvalidState(message string) *Error { return New(KindInvalidState, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

// Storage wraps an I/O or driver failure. Domain-rule errors pass through untouched.
func Storage(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Wrap(KindStorageUnavailable, message, err)
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrDuplicateRequest   = &Error{Kind: KindDuplicateRequest}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
)
