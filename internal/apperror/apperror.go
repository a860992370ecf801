package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the REST and gateway boundaries
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidOperation
	KindInvalidReference
	KindValidation
	KindAuth
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindInvalidReference:
		return "invalid_reference"
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal_error"
	}
}

// Error is an application error carrying its kind and a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap keeps cause for logs while exposing only message to clients
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func NotFound(msg string) *Error         { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error        { return New(KindForbidden, msg) }
func InvalidOperation(msg string) *Error { return New(KindInvalidOperation, msg) }
func InvalidReference(msg string) *Error { return New(KindInvalidReference, msg) }
func Validation(msg string) *Error       { return New(KindValidation, msg) }
func Auth(msg string) *Error             { return New(KindAuth, msg) }
func RateLimited(msg string) *Error      { return New(KindRateLimited, msg) }

func Internal(msg string, cause error) *Error {
	return Wrap(KindInternal, msg, cause)
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// PublicMessage is the text safe to show a client
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps err to the status code the REST facade returns
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidOperation, KindInvalidReference, KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
