package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Attendance event outcomes.
var (
	ErrAlreadyCheckedIn      = New("ALREADY_CHECKED_IN", http.StatusConflict, "already checked in")
	ErrAlreadyCheckedOut     = New("ALREADY_CHECKED_OUT", http.StatusConflict, "already checked out")
	ErrMustCheckInFirst      = New("MUST_CHECK_IN_FIRST", http.StatusConflict, "Must check in before checking out")
	ErrNoCheckInRecord       = New("NO_CHECK_IN_RECORD", http.StatusNotFound, "No check-in record found for today")
	ErrOutsideCheckoutWindow = New("OUTSIDE_CHECKOUT_WINDOW", http.StatusUnprocessableEntity, "check-out window is closed")
	ErrInvalidScanPayload    = New("INVALID_SCAN_PAYLOAD", http.StatusBadRequest, "Invalid QR code format")
	ErrInvalidAction         = New("INVALID_ACTION", http.StatusBadRequest, "action must be check_in or check_out")
	ErrPersistence           = New("PERSISTENCE_ERROR", http.StatusInternalServerError, "failed to persist attendance")
)

// NotificationFailureCode labels failed deliveries attached to results. It is never returned as an error.
const NotificationFailureCode = "NOTIFICATION_FAILURE"

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
