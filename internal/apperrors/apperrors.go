// Package apperrors defines the error kinds surfaced by the services and
// their mapping onto HTTP status codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error code.
type Kind string

const (
	KindInternal               Kind = "INTERNAL"
	KindAuthenticationRequired Kind = "AUTHENTICATION_REQUIRED"
	KindPermission             Kind = "PERMISSION_DENIED"
	KindValidation             Kind = "VALIDATION_FAILED"
	KindInvalidState           Kind = "INVALID_STATE"
	KindApplyConflict          Kind = "APPLY_CONFLICT"
	KindNotFound               Kind = "NOT_FOUND"
	KindTransient              Kind = "TRANSIENT"
	KindConflict               Kind = "CONFLICT"
	KindRateLimited            Kind = "RATE_LIMITED"
)

// HTTPStatus maps a kind to the status code returned to clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState, KindApplyConflict, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the operation.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// Error is a domain error carrying its kind and optional field details.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithField records a per-field detail, typically a validation failure.
func (e *Error) WithField(name, detail string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[name] = detail
	return e
}

// KindOf extracts the kind from any error. Unknown errors are internal.
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

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func AuthenticationRequired() *Error {
	return New(KindAuthenticationRequired, "authentication required")
}

func Permission(format string, args ...any) *Error {
	return New(KindPermission, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

func ApplyConflict(format string, args ...any) *Error {
	return New(KindApplyConflict, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Transient(err error, format string, args ...any) *Error {
	return Wrap(KindTransient, err, format, args...)
}
