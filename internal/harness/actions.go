package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/value"
)

// compileRule resolves a rule definition against the engine's templates.
func compileRule(e *engine.Engine, rd RuleDef) (rete.RuleSpec, error) {
	spec := rete.RuleSpec{
		Name:     rd.Name,
		Module:   rd.Module,
		Salience: rd.Salience,
		Logical:  rd.Logical,
		Patterns: make([]rete.PatternSpec, 0, len(rd.Patterns)),
	}
	for i, pd := range rd.Patterns {
		t, ok := e.Template(pd.Template)
		if !ok {
			return spec, fmt.Errorf("patterns[%d]: unknown template %s", i, pd.Template)
		}
		ps := rete.PatternSpec{Template: t, Negated: pd.Not, FactVar: varName(pd.Bind)}
		for j, cd := range pd.Constraints {
			c := rete.Constraint{
				Slot:    cd.Slot,
				Element: cd.Element,
				Op:      cd.Op,
				Var:     varName(cd.Var),
				Length:  cd.Length,
			}
			if cd.Value != nil {
				v, err := value.FromGo(cd.Value)
				if err != nil {
					return spec, fmt.Errorf("patterns[%d].constraints[%d]: %w", i, j, err)
				}
				c.Value = v
			}
			ps.Constraints = append(ps.Constraints, c)
		}
		spec.Patterns = append(spec.Patterns, ps)
	}
	return spec, nil
}

// compileActions turns action steps into a rule action. A rule without
// actions gets a nil action and fires without effect.
func compileActions(steps []ActionStep) engine.Action {
	if len(steps) == 0 {
		return nil
	}
	return func(fc *engine.FireContext) error {
		for i, step := range steps {
			if err := runAction(fc, &step); err != nil {
				return fmt.Errorf("actions[%d]: %w", i, err)
			}
		}
		return nil
	}
}

func runAction(fc *engine.FireContext, step *ActionStep) error {
	switch {
	case step.Assert != nil:
		slots, err := boundSlots(fc, step.Assert.Slots)
		if err != nil {
			return err
		}
		_, err = fc.Assert(step.Assert.Template, slots)
		return err
	case step.AssertLogical != nil:
		slots, err := boundSlots(fc, step.AssertLogical.Slots)
		if err != nil {
			return err
		}
		_, err = fc.AssertLogical(step.AssertLogical.Template, slots)
		return err
	case step.Retract != "":
		f, err := fc.Fact(varName(step.Retract))
		if err != nil {
			return err
		}
		if !f.Alive() {
			return nil
		}
		return fc.Retract(f.ID())
	case step.Modify != nil:
		f, err := fc.Fact(varName(step.Modify.Fact))
		if err != nil {
			return err
		}
		slots, err := boundSlots(fc, step.Modify.Slots)
		if err != nil {
			return err
		}
		_, err = fc.Modify(f.ID(), slots)
		return err
	case step.Focus != "":
		fc.Focus(step.Focus)
		return nil
	case step.Halt:
		return ruleerr.ErrHalt
	}
	return fmt.Errorf("empty action")
}

// literalSlots converts flow step slot values. Variables are not allowed
// outside rule actions.
func literalSlots(in map[string]any) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(in))
	for name, raw := range in {
		if s, ok := raw.(string); ok && strings.HasPrefix(s, "?") {
			return nil, fmt.Errorf("slot %s: variable %s outside a rule", name, s)
		}
		v, err := value.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// boundSlots converts action slot values, reading "?x" from the firing
// token.
func boundSlots(fc *engine.FireContext, in map[string]any) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(in))
	for name, raw := range in {
		v, err := resolve(fc, raw)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func resolve(fc *engine.FireContext, raw any) (value.Value, error) {
	switch x := raw.(type) {
	case string:
		if strings.HasPrefix(x, "?") {
			return fc.Var(varName(x))
		}
	case []any:
		l := make(value.List, len(x))
		for i, e := range x {
			v, err := resolve(fc, e)
			if err != nil {
				return nil, err
			}
			l[i] = v
		}
		return l, nil
	}
	return value.FromGo(raw)
}

// varName accepts variables written with or without the leading "?".
func varName(s string) string {
	return strings.TrimPrefix(s, "?")
}
