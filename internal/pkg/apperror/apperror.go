package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary and retry policy.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindRateLimited
	KindConfiguration
	KindProvider
	KindAuth
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "configuration"
	case KindProvider:
		return "provider"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	default:
		return "unexpected"
	}
}

// Error carries a stable machine readable code next to the wrapped cause.
// Message is safe to show to clients; Err is for logs only.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may repeat the same request later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindProvider, KindUnexpected:
		return true
	default:
		return false
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func RateLimited(bucket string) *Error {
	return &Error{Kind: KindRateLimited, Code: "rate_limited", Message: "too many requests for " + bucket}
}

func Configuration(code, message string) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Message: message}
}

func Provider(code string, err error) *Error {
	return &Error{Kind: KindProvider, Code: code, Message: "payment provider request failed", Err: err}
}

func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Unexpected(code string, err error) *Error {
	return &Error{Kind: KindUnexpected, Code: code, Message: "internal error", Err: err}
}

// As extracts an *Error from err; plain errors become KindUnexpected.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unexpected("internal_error", err)
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch As(err).Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindProvider:
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
