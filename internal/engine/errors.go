package engine

import (
	"errors"
	"fmt"
)

// RuntimeError reports a failure of the run loop or of working memory
// that is not a structural rule error.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule names the rule involved, if any.
	Rule string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeActionFailed indicates a rule action returned an error.
	ErrCodeActionFailed RuntimeErrorCode = "ACTION_FAILED"

	// ErrCodeQuotaExceeded indicates a run fired more rules than allowed.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeClosed indicates use of a closed engine.
	ErrCodeClosed RuntimeErrorCode = "ENGINE_CLOSED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Rule != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.Rule)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsActionError returns true if err reports a failed rule action.
// Uses errors.As to handle wrapped errors.
func IsActionError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeActionFailed
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewActionError wraps the error returned by rule's action.
func NewActionError(rule string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeActionFailed,
		Message: "rule action failed",
		Rule:    rule,
		Err:     err,
	}
}

var errClosed = &RuntimeError{Code: ErrCodeClosed, Message: "engine is closed"}
