package rete

import (
	"fmt"

	"github.com/roach88/rete/internal/compare"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/value"
)

// Predicate is the capability of a filter node. The set of predicates is
// closed: ClassTest, SlotTest and LengthTest.
type Predicate interface {
	// Test evaluates the predicate against the token's top fact.
	Test(f *fact.Fact, ctx *Context) (bool, error)

	// Stateful reports whether the node keeps state that growing old must
	// freeze.
	Stateful() bool

	// PassOnRetract reports whether REMOVE and MODIFY_REMOVE pass without
	// re-testing.
	PassOnRetract() bool

	// Describe names the test for listings and error trails.
	Describe() string

	predicate()
}

// ClassTest passes facts whose type is Type or descends from it.
type ClassTest struct {
	Type string
}

func (ClassTest) predicate() {}

// Test walks the fact's template chain.
func (c ClassTest) Test(f *fact.Fact, _ *Context) (bool, error) {
	return f.Template().IsA(c.Type), nil
}

func (ClassTest) Stateful() bool      { return false }
func (ClassTest) PassOnRetract() bool { return false }
func (c ClassTest) Describe() string  { return "class " + c.Type }

// TestOp selects how a SlotTest or JoinTest compares.
type TestOp int

const (
	// OpEq passes when the values are equal. With a dynamic operand it
	// passes when the result is not FALSE.
	OpEq TestOp = iota
	// OpNeq is the negation of OpEq.
	OpNeq
	// OpCompare applies an ordering operator.
	OpCompare
)

// SlotTest compares the value at Slot (element Sub of a multislot when Sub
// is not negative) against a literal or a dynamic operand.
type SlotTest struct {
	Slot     int
	Sub      int
	Op       TestOp
	Operator compare.Operator
	Literal  value.Value
	Fn       Function
}

func (SlotTest) predicate() {}

// Test evaluates the comparison. Evaluating a dynamic operand marks the
// current token prepared.
func (s SlotTest) Test(f *fact.Fact, ctx *Context) (bool, error) {
	v, err := f.GetSub(s.Slot, s.Sub)
	if err != nil {
		return false, err
	}

	operand := s.Literal
	if s.Fn != nil {
		operand, err = ctx.Resolve(s.Fn)
		if err != nil {
			return false, err
		}
		if tok := ctx.Token(); tok != nil {
			tok.MarkPrepared()
		}
	}

	switch s.Op {
	case OpEq, OpNeq:
		var match bool
		if s.Fn != nil {
			match = !value.IsFalse(operand)
		} else {
			match = value.Equal(v, operand)
		}
		if s.Op == OpNeq {
			match = !match
		}
		return match, nil
	case OpCompare:
		return compare.Evaluate(s.Operator, v, operand)
	}
	return false, fmt.Errorf("unknown slot test op %d", s.Op)
}

func (SlotTest) Stateful() bool { return false }

// PassOnRetract is true for equality and inequality tests.
func (s SlotTest) PassOnRetract() bool { return s.Op == OpEq || s.Op == OpNeq }

func (s SlotTest) Describe() string {
	operand := "<nil>"
	switch {
	case s.Fn != nil:
		operand = s.Fn.String()
	case s.Literal != nil:
		operand = s.Literal.String()
	}
	return fmt.Sprintf("slot %s %s %s", slotRef(s.Slot, s.Sub), opName(s.Op, s.Operator), operand)
}

// LengthTest passes when the value at Slot is a list of exactly N elements.
type LengthTest struct {
	Slot int
	N    int
}

func (LengthTest) predicate() {}

func (l LengthTest) Test(f *fact.Fact, _ *Context) (bool, error) {
	v, err := f.Get(l.Slot)
	if err != nil {
		return false, err
	}
	list, ok := v.(value.List)
	return ok && len(list) == l.N, nil
}

func (LengthTest) Stateful() bool      { return false }
func (LengthTest) PassOnRetract() bool { return false }
func (l LengthTest) Describe() string  { return fmt.Sprintf("length %s = %d", slotRef(l.Slot, -1), l.N) }

func slotRef(slot, sub int) string {
	if sub >= 0 {
		return fmt.Sprintf("[%d][%d]", slot, sub)
	}
	return fmt.Sprintf("[%d]", slot)
}

func opName(op TestOp, operator compare.Operator) string {
	switch op {
	case OpEq:
		return "eq"
	case OpNeq:
		return "neq"
	case OpCompare:
		if operator != nil {
			return operator.Name()
		}
	}
	return "?"
}
