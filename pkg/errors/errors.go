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
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "operation failed, retry")
	ErrTimeout            = New("TIMEOUT", http.StatusGatewayTimeout, "operation timed out, retry")

	// Enrollment business rules. These surface verbatim to the caller and are
	// terminal for the request; retrying without changing state will not help.
	ErrInactiveStudent     = New("INACTIVE_STUDENT", http.StatusConflict, "student is not active")
	ErrDuplicateEnrollment = New("DUPLICATE_ENROLLMENT", http.StatusConflict, "student already has a live enrollment for this course and semester")
	ErrPrerequisitesNotMet = New("PREREQUISITES_NOT_MET", http.StatusConflict, "course prerequisites not satisfied")
	ErrCourseFull          = New("COURSE_FULL", http.StatusConflict, "course has reached capacity")
	ErrCreditLimitExceeded = New("CREDIT_LIMIT_EXCEEDED", http.StatusConflict, "semester credit limit exceeded")
	ErrDeadlinePassed      = New("DEADLINE_PASSED", http.StatusConflict, "drop deadline for the semester has passed")
	ErrInvalidGrade        = New("INVALID_GRADE", http.StatusBadRequest, "grade is not in the accepted letter-grade set")
	ErrDuplicateCourseCode = New("DUPLICATE_COURSE_CODE", http.StatusConflict, "a course with this code already exists")
)

// ErrCacheMiss indicates that no cached value exists for the requested key.
var ErrCacheMiss = errors.New("cache miss")

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
