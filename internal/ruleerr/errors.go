// Package ruleerr defines the error taxonomy shared by the matching core.
//
// Structural errors carry the routine that raised them, a message and the
// offending value. Errors crossing a network node pick up one trail entry
// per node so the diagnostic path through the network survives to the
// caller. Control-flow signals are plain sentinel errors and are never
// logged.
package ruleerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rete/internal/value"
)

// Code categorizes structural errors.
type Code string

const (
	// CodeBadArgument indicates an argument of the wrong type or shape.
	CodeBadArgument Code = "BAD_ARGUMENT"

	// CodeNoSuchSlot indicates a slot name or index outside the template.
	CodeNoSuchSlot Code = "NO_SUCH_SLOT"

	// CodeNoSuchFact indicates a fact id that is not alive in working memory.
	CodeNoSuchFact Code = "NO_SUCH_FACT"

	// CodeNoSuchTemplate indicates an unknown template name.
	CodeNoSuchTemplate Code = "NO_SUCH_TEMPLATE"

	// CodeNoSuchStrategy indicates an unregistered conflict strategy name.
	CodeNoSuchStrategy Code = "NO_SUCH_STRATEGY"

	// CodeUndefinedComparison indicates an ordering operator applied to a
	// value that has no ordering.
	CodeUndefinedComparison Code = "UNDEFINED_COMPARISON"

	// CodeComparisonFailed indicates a comparable value's ordering failed.
	CodeComparisonFailed Code = "COMPARISON_FAILED"

	// CodeLHS indicates an unexpected fault while evaluating a rule LHS.
	CodeLHS Code = "LHS_ERROR"

	// CodeDuplicateRule indicates a rule name already present in the network.
	CodeDuplicateRule Code = "DUPLICATE_RULE"

	// CodeNoSuchRule indicates an unknown rule name.
	CodeNoSuchRule Code = "NO_SUCH_RULE"
)

// Error is the structural error kind.
type Error struct {
	Code    Code
	Routine string
	Message string

	// Value is the offending value, if any.
	Value value.Value

	// Trail lists the network nodes the error crossed, innermost first.
	Trail []string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if e.Routine != "" {
		b.WriteString(e.Routine)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Value != nil {
		fmt.Fprintf(&b, " (value %s)", value.Describe(e.Value))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, t := range e.Trail {
		b.WriteString("\n  while executing ")
		b.WriteString(t)
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// AddContext appends a trail entry and returns the receiver.
func (e *Error) AddContext(context string) *Error {
	e.Trail = append(e.Trail, context)
	return e
}

// New creates a structural error.
func New(code Code, routine, message string, v value.Value) *Error {
	return &Error{Code: code, Routine: routine, Message: message, Value: v}
}

// Wrap creates a structural error around a cause.
func Wrap(code Code, routine, message string, v value.Value, err error) *Error {
	return &Error{Code: code, Routine: routine, Message: message, Value: v, Err: err}
}

// Annotate records that err crossed a network node described by context.
//
// Structural errors get a trail entry appended in place. Control-flow
// signals pass through untouched. Any other error is wrapped as an LHS
// error so that nothing leaves the network unannotated.
func Annotate(err error, context string) error {
	if err == nil || IsControl(err) {
		return err
	}
	var re *Error
	if errors.As(err, &re) {
		re.AddContext(context)
		return err
	}
	return Wrap(CodeLHS, "", "error during LHS execution", nil, err).AddContext(context)
}

// FromPanic converts a recovered panic into an LHS error.
func FromPanic(r any, context string) error {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	return Wrap(CodeLHS, "", "error during LHS execution", nil, err).AddContext(context)
}

// IsCode reports whether err is a structural error with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// Control-flow signals. They are singletons compared with errors.Is.
var (
	ErrBreak    = errors.New("break")
	ErrContinue = errors.New("continue")
	ErrReturn   = errors.New("return")
	ErrHalt     = errors.New("halt")
)

// IsControl reports whether err is one of the control-flow signals.
func IsControl(err error) bool {
	return errors.Is(err, ErrBreak) ||
		errors.Is(err, ErrContinue) ||
		errors.Is(err, ErrReturn) ||
		errors.Is(err, ErrHalt)
}
