// internal/pkg/apperror/apperror.go
package apperror

import (
	stderrors "errors"
	"net/http"
)

// Code identifies a stable, client-visible error category.
type Code string

const (
	CodeValidationFailed      Code = "VALIDATION_FAILED"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeConflict              Code = "CONFLICT"
	CodeDepositNotAllowed     Code = "DEPOSIT_NOT_ALLOWED"
	CodeDepositBelowMinimum   Code = "DEPOSIT_BELOW_MINIMUM"
	CodeDepositDeadlinePassed Code = "DEPOSIT_DEADLINE_PASSED"
	CodeInventoryExhausted    Code = "INVENTORY_EXHAUSTED"
	CodeSeatsUnavailable      Code = "SEATS_UNAVAILABLE"
	CodePaymentIncomplete     Code = "PAYMENT_INCOMPLETE"
	CodeInternal              Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeValidationFailed:      http.StatusBadRequest,
	CodeNotFound:              http.StatusNotFound,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeForbidden:             http.StatusForbidden,
	CodeConflict:              http.StatusConflict,
	CodeDepositNotAllowed:     http.StatusBadRequest,
	CodeDepositBelowMinimum:   http.StatusBadRequest,
	CodeDepositDeadlinePassed: http.StatusBadRequest,
	CodeInventoryExhausted:    http.StatusConflict,
	CodeSeatsUnavailable:      http.StatusConflict,
	CodePaymentIncomplete:     http.StatusBadRequest,
	CodeInternal:              http.StatusInternalServerError,
}

// HTTPStatus maps a code to its HTTP status. Unknown codes map to 500.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a coded error carrying a user-safe message and optional details.
type Error struct {
	code    Code
	message string
	details map[string]interface{}
	cause   error
}

// New creates a coded error with a user-safe message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap creates a coded error around an underlying cause. The cause is
// available to errors.Is/As and logging but never echoed to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Internal wraps an unexpected failure as a 500 without leaking the cause.
func Internal(cause error) *Error {
	return &Error{code: CodeInternal, message: "internal server error", cause: cause}
}

// WithDetail attaches a key/value detail pair, e.g. the offending event id.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.details == nil {
		e.details = map[string]interface{}{}
	}
	e.details[key] = value
	return e
}

// Code returns the error's stable code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

// Message returns the user-safe message.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns attached details, if any.
func (e *Error) Details() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.details
}

// Status returns the HTTP status for the error's code.
func (e *Error) Status() int {
	return HTTPStatus(e.Code())
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return string(e.code) + ": " + e.message + ": " + e.cause.Error()
	}
	return string(e.code) + ": " + e.message
}

// Unwrap exposes the cause to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts a coded error from an error chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}
