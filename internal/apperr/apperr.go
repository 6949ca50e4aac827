// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindTokenExpired
	KindTokenInvalid
	KindNotFound
	KindConflict
	KindQuotaExceeded
	KindUpstream
	KindRateLimited
)

// Error codes returned in the JSON envelope.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeMessageRequired      = "MESSAGE_REQUIRED"
	CodeTitleRequired        = "TITLE_REQUIRED"
	CodeTokenMissing         = "TOKEN_MISSING"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeUserInvalid          = "USER_INVALID"
	CodeUserExists           = "USER_EXISTS"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAccountDisabled      = "ACCOUNT_DISABLED"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeQuotaExceeded        = "OPENAI_QUOTA_EXCEEDED"
	CodeCompletionFailed     = "OPENAI_ERROR"
	CodeRateLimited          = "RATE_LIMITED"
	CodeRouteNotFound        = "ROUTE_NOT_FOUND"
	CodeInternal             = "INTERNAL_ERROR"
)

// Error is an application error with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
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

// Status returns the HTTP status for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated, KindTokenExpired:
		return http.StatusUnauthorized
	case KindTokenInvalid:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindQuotaExceeded, KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validation reports malformed input.
func Validation(code, message string, details ...FieldError) *Error {
	e := &Error{Kind: KindValidation, Code: code, Message: message}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// Unauthenticated reports a failed identity check.
func Unauthenticated(code, message string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: message}
}

// NotFound reports a missing or foreign resource.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal server error", Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
