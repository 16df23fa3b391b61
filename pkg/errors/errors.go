package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldViolation names a field and the rule it broke. Messages are meant
// to be returned verbatim to API consumers.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	Status     int              `json:"status"`
	Violations []FieldViolation `json:"violations,omitempty"`
	Err        error            `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.Field + ": " + v.Message
		}
		msg = msg + " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is comparisons against the predefined vars by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the registry's failure modes.
var (
	ErrValidation             = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrConflict               = New("CONFLICT", http.StatusConflict, "conflict")
	ErrDuplicateEnrollment    = New("DUPLICATE_ENROLLMENT", http.StatusConflict, "student already enrolled in program")
	ErrReferentialIntegrity   = New("REFERENTIAL_INTEGRITY", http.StatusUnprocessableEntity, "referenced record does not exist")
	ErrInvalidStateTransition = New("INVALID_STATE_TRANSITION", http.StatusConflict, "invalid state transition")
	ErrNotFound               = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrTimeout                = New("TIMEOUT", http.StatusGatewayTimeout, "operation timed out")
	ErrUnavailable            = New("UNAVAILABLE", http.StatusServiceUnavailable, "storage engine unavailable")
	ErrInternal               = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss              = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Validation builds a VALIDATION_ERROR carrying per-field messages.
func Validation(violations ...FieldViolation) *Error {
	return &Error{
		Code:       ErrValidation.Code,
		Status:     ErrValidation.Status,
		Message:    ErrValidation.Message,
		Violations: violations,
	}
}

// ValidationField is shorthand for a single-field validation failure.
func ValidationField(field, message string) *Error {
	return Validation(FieldViolation{Field: field, Message: message})
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
