package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to clients.
const (
	CodeValidation           = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeConflict             = "CONFLICT"
	CodeInternal             = "INTERNAL_ERROR"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeTokenMalformed       = "TOKEN_MALFORMED"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeTokenExpired         = "TOKEN_EXPIRED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewAuthenticationFailed is returned for every failed login regardless of
// whether the credential name exists.
func NewAuthenticationFailed() error {
	return NewDomainError(CodeAuthenticationFailed, "invalid email or password", http.StatusUnauthorized, nil)
}

// NewTokenError wraps a token verification failure. The cause is kept for
// logging and never rendered.
func NewTokenError(code string, cause error) error {
	var message string
	switch code {
	case CodeTokenExpired:
		message = "token expired"
	case CodeTokenMalformed:
		message = "malformed token"
	default:
		code = CodeTokenInvalid
		message = "invalid token"
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: http.StatusUnauthorized, Err: cause}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError. Anything unrecognised
// is an internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// fromFiberError covers errors raised by fiber itself, such as unmatched
// routes or oversized bodies.
func fromFiberError(err *fiber.Error) *DomainError {
	code := CodeInternal
	switch {
	case err.Code == http.StatusNotFound:
		code = CodeNotFound
	case err.Code == http.StatusUnauthorized:
		code = CodeUnauthorized
	case err.Code == http.StatusForbidden:
		code = CodeForbidden
	case err.Code >= 400 && err.Code < 500:
		code = CodeValidation
	}
	message := err.Message
	if err.Code >= 500 {
		message = "internal server error"
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: err.Code, Err: err}
}
