// Package service holds the business rules of the blog: post publishing and
// listing, taxonomy upkeep, comments and account flows.
package service

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies a service error
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// HTTPStatus maps the kind to a response status
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that fails. Message is safe
// to show to clients; Err is the underlying cause and is only logged.
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

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation reports bad input
func Validation(msg string) *Error { return newError(KindValidation, msg) }

// Unauthorized reports a missing or bad credential
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg) }

// Forbidden reports an authenticated caller lacking permission
func Forbidden(msg string) *Error { return newError(KindForbidden, msg) }

// NotFound reports a missing resource
func NotFound(msg string) *Error { return newError(KindNotFound, msg) }

// Conflict reports a uniqueness clash
func Conflict(msg string) *Error { return newError(KindConflict, msg) }

// Internal wraps an unexpected failure
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// storeError converts a store failure into a service error. Unique
// violations become Conflict with the given message.
func storeError(op string, err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if conflictMsg != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindConflict, Message: conflictMsg, Err: err}
	}
	return Internal(op, err)
}
