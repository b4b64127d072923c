package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts rule firings within one Run and enforces a maximum.
// It stops runaway rule sets that keep generating new activations.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps firings. A
// non-positive limit disables enforcement.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one firing and reports StepsExceededError once the limit is
// passed.
func (q *QuotaEnforcer) Check(runID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{RunID: runID, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Reset sets the count back to zero.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the number of firings counted.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Run when a run exceeds the firing
// quota. The activation that would have exceeded it stays unfired.
type StepsExceededError struct {
	RunID string
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("run %s exceeded max firings quota: %d firings > %d limit",
		e.RunID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
