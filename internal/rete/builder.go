package rete

import (
	"fmt"
	"slices"

	"github.com/roach88/rete/internal/compare"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// MainModule is the module rules belong to unless they name another.
const MainModule = "MAIN"

// RuleSpec is the compiled form of a rule's LHS as the builder consumes it.
type RuleSpec struct {
	Name     string
	Module   string
	Salience int
	// Logical rules give logical support to the facts their actions assert.
	Logical  bool
	Patterns []PatternSpec
}

// PatternSpec matches one fact.
type PatternSpec struct {
	Template    *fact.Template
	Negated     bool
	FactVar     string
	Constraints []Constraint
}

// Constraint restricts one slot of a pattern.
//
// Exactly one of Value, Var and Fn is set, except for Op "length" which
// uses Length. Element selects a multislot element counting from 1; zero
// means the whole slot. Op is "eq" (the default), "neq", "length", or an
// ordering operator such as "<".
type Constraint struct {
	Slot    string
	Element int
	Op      string
	Value   value.Value
	Var     string
	Fn      Function
	Length  int
}

type binding struct {
	index int
	slot  int
	sub   int
}

// Rule is a rule installed in a network.
type Rule struct {
	Name     string
	Module   string
	Salience int
	Logical  bool

	size     int
	bindings map[string]binding
	// usage holds the slots each token position's pattern reads; nil means
	// the pattern evaluates dynamic expressions and reads everything.
	usage []map[int]bool
}

// Size returns the number of facts in the rule's complete tokens.
func (r *Rule) Size() int { return r.size }

// Vars returns the names of the rule's bound variables, sorted.
func (r *Rule) Vars() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Var returns the value a variable is bound to in tok. Fact variables
// return the fact's id.
func (r *Rule) Var(tok *token.Token, name string) (value.Value, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, r.Name,
			fmt.Sprintf("unbound variable ?%s", name), value.Symbol(name))
	}
	if b.index >= tok.Size() {
		return nil, fmt.Errorf("token %s too short for ?%s", tok, name)
	}
	if b.slot < 0 {
		return value.Int(tok.Fact(b.index).ID()), nil
	}
	return tok.Fact(b.index).GetSub(b.slot, b.sub)
}

// FactVar returns the fact bound to a pattern variable.
func (r *Rule) FactVar(tok *token.Token, name string) (*fact.Fact, error) {
	b, ok := r.bindings[name]
	if !ok || b.slot >= 0 {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, r.Name,
			fmt.Sprintf("?%s is not a fact variable", name), value.Symbol(name))
	}
	return tok.Fact(b.index), nil
}

// IsRelevantChange reports whether a modify of the fact at factIndex in
// tok touched a slot this rule's LHS reads. An unknown position is always
// relevant.
func (r *Rule) IsRelevantChange(factIndex int, tok *token.Token, ctx *Context) bool {
	if factIndex < 0 || factIndex >= len(r.usage) || ctx == nil {
		return true
	}
	used := r.usage[factIndex]
	if used == nil || ctx.ChangedSlots() == nil {
		return true
	}
	for _, slot := range ctx.ChangedSlots() {
		if used[slot] {
			return true
		}
	}
	return false
}

// Builder installs rules into a network.
type Builder struct {
	Net *Network

	// Logical creates the dependency listener for a logical rule.
	Logical func(*Rule) TokenListener
}

type plannedPattern struct {
	class   string
	filters []Predicate
	tests   []JoinTest
	negated bool
}

// Build compiles spec and links its nodes into the network. Nothing is
// added when the spec is invalid.
func (b *Builder) Build(spec RuleSpec) (*Rule, error) {
	if spec.Name == "" {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule", "rule name is required", nil)
	}
	if _, dup := b.Net.Rule(spec.Name); dup {
		return nil, ruleerr.New(ruleerr.CodeDuplicateRule, "defrule",
			fmt.Sprintf("rule %s already exists", spec.Name), value.Symbol(spec.Name))
	}
	if len(spec.Patterns) == 0 {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
			fmt.Sprintf("rule %s has no patterns", spec.Name), nil)
	}

	rule := &Rule{
		Name:     spec.Name,
		Module:   spec.Module,
		Salience: spec.Salience,
		Logical:  spec.Logical,
		bindings: make(map[string]binding),
	}
	if rule.Module == "" {
		rule.Module = MainModule
	}

	plan, err := b.plan(rule, spec)
	if err != nil {
		return nil, err
	}

	var listener TokenListener
	if rule.Logical && b.Logical != nil {
		listener = b.Logical(rule)
	}
	return rule, b.materialize(rule, plan, listener)
}

func (b *Builder) plan(rule *Rule, spec RuleSpec) ([]plannedPattern, error) {
	plan := make([]plannedPattern, 0, len(spec.Patterns))
	for i, p := range spec.Patterns {
		if p.Template == nil {
			return nil, ruleerr.New(ruleerr.CodeNoSuchTemplate, "defrule",
				fmt.Sprintf("pattern %d of %s has no template", i+1, rule.Name), nil)
		}
		if p.Negated && i == 0 {
			return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
				fmt.Sprintf("first pattern of %s cannot be negated", rule.Name), nil)
		}
		if p.Negated && p.FactVar != "" {
			return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
				fmt.Sprintf("negated pattern of %s cannot bind ?%s", rule.Name, p.FactVar), value.Symbol(p.FactVar))
		}

		pp := plannedPattern{class: p.Template.Name(), negated: p.Negated}
		used := make(map[int]bool)
		dynamic := false
		local := make(map[string]bool)

		for _, c := range p.Constraints {
			slot := p.Template.SlotIndex(c.Slot)
			if slot < 0 {
				return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "defrule",
					fmt.Sprintf("template %s has no slot %q", p.Template.Name(), c.Slot), value.Symbol(c.Slot))
			}
			sub := c.Element - 1
			if sub >= 0 && !p.Template.Slots()[slot].Multi {
				return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
					fmt.Sprintf("slot %s of %s is not a multislot", c.Slot, p.Template.Name()), value.Symbol(c.Slot))
			}
			used[slot] = true

			op, operator, err := parseOp(c.Op)
			if err != nil {
				return nil, err
			}

			switch {
			case c.Op == "length":
				pp.filters = append(pp.filters, LengthTest{Slot: slot, N: c.Length})

			case c.Fn != nil:
				pp.filters = append(pp.filters, SlotTest{Slot: slot, Sub: sub, Op: op, Operator: operator, Fn: c.Fn})
				dynamic = true

			case c.Var != "":
				bound, ok := rule.bindings[c.Var]
				switch {
				case local[c.Var]:
					return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
						fmt.Sprintf("?%s appears twice in one pattern of %s", c.Var, rule.Name), value.Symbol(c.Var))
				case ok && bound.slot < 0:
					return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
						fmt.Sprintf("?%s is a fact variable and cannot constrain slot %s in %s", c.Var, c.Slot, rule.Name), value.Symbol(c.Var))
				case ok:
					pp.tests = append(pp.tests, JoinTest{
						LeftIndex: bound.index, LeftSlot: bound.slot, LeftSub: bound.sub,
						RightSlot: slot, RightSub: sub, Op: op, Operator: operator,
					})
				case op != OpEq:
					return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
						fmt.Sprintf("?%s is compared before it is bound in %s", c.Var, rule.Name), value.Symbol(c.Var))
				case !p.Negated:
					rule.bindings[c.Var] = binding{index: rule.size, slot: slot, sub: sub}
					local[c.Var] = true
				}

			default:
				if c.Value == nil {
					return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
						fmt.Sprintf("constraint on %s has no operand", c.Slot), nil)
				}
				pp.filters = append(pp.filters, SlotTest{Slot: slot, Sub: sub, Op: op, Operator: operator, Literal: c.Value})
			}
		}

		if p.Negated {
			plan = append(plan, pp)
			continue
		}
		if p.FactVar != "" {
			if _, dup := rule.bindings[p.FactVar]; dup {
				return nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
					fmt.Sprintf("?%s is bound twice in %s", p.FactVar, rule.Name), value.Symbol(p.FactVar))
			}
			rule.bindings[p.FactVar] = binding{index: rule.size, slot: -1, sub: -1}
		}
		if dynamic {
			used = nil
		}
		rule.usage = append(rule.usage, used)
		rule.size++
		plan = append(plan, pp)
	}
	return plan, nil
}

func (b *Builder) materialize(rule *Rule, plan []plannedPattern, listener TokenListener) error {
	net := b.Net
	var tail NodeID
	for i, pp := range plan {
		alpha := net.AddClassNode(pp.class)
		for _, p := range pp.filters {
			id := net.AddFilterNode(p)
			if err := net.AddSuccessor(alpha, id, Left); err != nil {
				return err
			}
			alpha = id
		}
		if i == 0 {
			tail = alpha
			continue
		}
		join := net.AddJoinNode(pp.tests, pp.negated)
		if err := net.AddSuccessor(tail, join, Left); err != nil {
			return err
		}
		if err := net.AddSuccessor(alpha, join, Right); err != nil {
			return err
		}
		tail = join
	}

	term, err := net.AddTerminalNode(rule, listener)
	if err != nil {
		return err
	}
	if err := net.AddSuccessor(tail, term, Left); err != nil {
		return err
	}
	net.logger.Debug("rule added to network", "rule", rule.Name, "patterns", len(plan), "nodes", net.NodeCount())
	return nil
}

func parseOp(name string) (TestOp, compare.Operator, error) {
	switch name {
	case "", "eq", "length":
		return OpEq, nil, nil
	case "neq":
		return OpNeq, nil, nil
	}
	operator, ok := compare.Lookup(name)
	if !ok {
		return 0, nil, ruleerr.New(ruleerr.CodeBadArgument, "defrule",
			fmt.Sprintf("unknown operator %q", name), value.Symbol(name))
	}
	return OpCompare, operator, nil
}
