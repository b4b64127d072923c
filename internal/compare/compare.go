// Package compare implements the chained comparison protocol shared by the
// ordering operators used in network tests.
//
// Evaluate walks the operands left to right and stops at the first adjacent
// pair the operator rejects. After each step the operator chooses the next
// left operand, which lets "<" check a strictly increasing sequence while
// "<>" compares every operand against the first.
package compare

import (
	"cmp"
	"fmt"

	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/value"
)

// Operator defines one comparison.
type Operator interface {
	// Name is the operator's symbol, e.g. "<".
	Name() string

	// Accept decides the pair from a three-way comparison result.
	Accept(c int) bool

	// Advance returns the left operand for the next step.
	Advance(left, right value.Value) value.Value
}

// Evaluate applies op across operands.
func Evaluate(op Operator, operands ...value.Value) (bool, error) {
	if len(operands) < 2 {
		return false, ruleerr.New(ruleerr.CodeBadArgument, op.Name(),
			fmt.Sprintf("expected at least 2 operands, got %d", len(operands)), nil)
	}

	left := operands[0]
	if value.IsNumeric(left) {
		for _, right := range operands[1:] {
			if !value.IsNumeric(right) {
				return false, ruleerr.New(ruleerr.CodeBadArgument, op.Name(), "not a number", right)
			}
			if !op.Accept(compareNumbers(left, right)) {
				return false, nil
			}
			left = op.Advance(left, right)
		}
		return true, nil
	}

	if _, ok := left.(value.Ordered); ok {
		for _, right := range operands[1:] {
			ordered, ok := left.(value.Ordered)
			if !ok {
				return false, ruleerr.New(ruleerr.CodeUndefinedComparison, op.Name(),
					"comparison is not defined for this value", left)
			}
			c, err := ordered.CompareTo(right)
			if err != nil {
				return false, ruleerr.Wrap(ruleerr.CodeComparisonFailed, op.Name(),
					"ordering failed", left, err)
			}
			if !op.Accept(c) {
				return false, nil
			}
			left = op.Advance(left, right)
		}
		return true, nil
	}

	return false, ruleerr.New(ruleerr.CodeUndefinedComparison, op.Name(),
		"comparison is not defined for this value", left)
}

// compareNumbers compares two numeric values, as integers when both are
// integers and as floats otherwise.
func compareNumbers(a, b value.Value) int {
	ai, aok := a.(value.Int)
	bi, bok := b.(value.Int)
	if aok && bok {
		return cmp.Compare(ai, bi)
	}
	af, _ := value.AsFloat(a)
	bf, _ := value.AsFloat(b)
	return cmp.Compare(af, bf)
}

// rolling advances to the most recent right operand.
type rolling struct{}

func (rolling) Advance(_, right value.Value) value.Value { return right }

// anchored keeps the first operand as the left side of every step.
type anchored struct{}

func (anchored) Advance(left, _ value.Value) value.Value { return left }

type lessThan struct{ rolling }

func (lessThan) Name() string      { return "<" }
func (lessThan) Accept(c int) bool { return c < 0 }

type lessOrEqual struct{ rolling }

func (lessOrEqual) Name() string      { return "<=" }
func (lessOrEqual) Accept(c int) bool { return c <= 0 }

type greaterThan struct{ rolling }

func (greaterThan) Name() string      { return ">" }
func (greaterThan) Accept(c int) bool { return c > 0 }

type greaterOrEqual struct{ rolling }

func (greaterOrEqual) Name() string      { return ">=" }
func (greaterOrEqual) Accept(c int) bool { return c >= 0 }

type equal struct{ rolling }

func (equal) Name() string      { return "=" }
func (equal) Accept(c int) bool { return c == 0 }

type notEqual struct{ anchored }

func (notEqual) Name() string      { return "<>" }
func (notEqual) Accept(c int) bool { return c != 0 }

// The built-in operators.
var (
	Less           Operator = lessThan{}
	LessOrEqual    Operator = lessOrEqual{}
	Greater        Operator = greaterThan{}
	GreaterOrEqual Operator = greaterOrEqual{}
	Equal          Operator = equal{}
	NotEqual       Operator = notEqual{}
)

var operators = map[string]Operator{
	"<":  Less,
	"<=": LessOrEqual,
	">":  Greater,
	">=": GreaterOrEqual,
	"=":  Equal,
	"<>": NotEqual,
}

// Lookup returns the built-in operator with the given symbol.
func Lookup(name string) (Operator, bool) {
	op, ok := operators[name]
	return op, ok
}
