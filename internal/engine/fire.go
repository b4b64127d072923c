package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/rete/internal/agenda"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/store"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// Action is a rule's right-hand side.
type Action func(fc *FireContext) error

// FireContext is what an action sees of the firing activation and of the
// engine.
type FireContext struct {
	e   *Engine
	act *agenda.Activation
}

// Rule returns the firing rule.
func (fc *FireContext) Rule() *rete.Rule { return fc.act.Rule }

// Token returns the matched facts.
func (fc *FireContext) Token() *token.Token { return fc.act.Token }

// Var returns the value bound to a pattern variable.
func (fc *FireContext) Var(name string) (value.Value, error) {
	return fc.act.Rule.Var(fc.act.Token, name)
}

// Fact returns the fact bound to a fact variable.
func (fc *FireContext) Fact(name string) (*fact.Fact, error) {
	return fc.act.Rule.FactVar(fc.act.Token, name)
}

// Assert asserts a fact unconditionally.
func (fc *FireContext) Assert(typ string, slots map[string]value.Value) (*fact.Fact, error) {
	return fc.e.Assert(typ, slots)
}

// AssertLogical asserts a fact supported by the firing match. The fact is
// retracted when every match supporting it is gone. Content already
// asserted unconditionally stays unconditional. If the match was removed
// while the action ran, nothing is asserted and nil is returned.
func (fc *FireContext) AssertLogical(typ string, slots map[string]value.Value) (*fact.Fact, error) {
	rule, tok := fc.act.Rule, fc.act.Token
	if !rule.Logical {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "logical",
			fmt.Sprintf("rule %s is not logical", rule.Name), value.Symbol(rule.Name))
	}

	e := fc.e
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range tok.Facts() {
		if !f.Alive() {
			e.logger.Debug("logical assert skipped, support gone", "rule", rule.Name, "token", tok.String())
			return nil, nil
		}
	}

	f, err := e.newFactLocked(typ, slots)
	if err != nil {
		return nil, err
	}
	if existing, ok := e.byContent[f.ContentKey()]; ok {
		if _, logical := e.support[existing.ID()]; logical {
			e.addSupportLocked(existing, rule.Name, tok)
		}
		return existing, nil
	}
	e.insertLocked(f)
	e.addSupportLocked(f, rule.Name, tok)
	return f, e.propagateAssertLocked(f)
}

// Retract retracts a fact by id.
func (fc *FireContext) Retract(id int64) error { return fc.e.Retract(id) }

// Modify modifies a fact by id.
func (fc *FireContext) Modify(id int64, slots map[string]value.Value) (*fact.Fact, error) {
	return fc.e.Modify(id, slots)
}

// Focus pushes module onto the focus stack.
func (fc *FireContext) Focus(module string) { fc.e.Focus(module) }

// Halt stops the run after the current action.
func (fc *FireContext) Halt() { fc.e.Halt() }

// Halt stops Run before the next firing.
func (e *Engine) Halt() {
	e.halted.Store(true)
}

// Run fires activations until the agenda in focus is empty, limit firings
// have happened, Halt is called or ctx is done. A non-positive limit means
// no limit. It returns the number of rules fired.
//
// The firing quota (WithMaxFirings) is checked before each firing; the
// activation that would exceed it stays queued and StepsExceededError is
// returned.
func (e *Engine) Run(ctx context.Context, limit int) (int, error) {
	e.halted.Store(false)
	quota := NewQuotaEnforcer(e.maxFirings)
	fired := 0

	for limit <= 0 || fired < limit {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if e.halted.Load() || e.agenda.Peek() == nil {
			break
		}
		if err := quota.Check(e.runID); err != nil {
			e.logger.Error("max firings quota exceeded",
				"run_id", e.runID,
				"firings", fired,
				"limit", e.maxFirings,
			)
			return fired, err
		}
		ok, err := e.Step(ctx)
		if ok {
			fired++
		}
		if err != nil {
			return fired, err
		}
		if !ok {
			break
		}
	}
	return fired, nil
}

// Step fires the next activation. It reports false when nothing in focus
// can fire. A rule added with a nil action fires without effect.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	act := e.agenda.Next()
	if act == nil {
		return false, nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, errClosed
	}
	action := e.actions[act.Rule.Name]
	e.fired++
	n := e.fired
	e.recordFiring(act)
	if e.watch != nil {
		fmt.Fprintf(e.watch, "FIRE %d %s: %s\n", n, act.Rule.Name, act.Token)
	}
	e.mu.Unlock()

	e.logger.Debug("rule fired", "rule", act.Rule.Name, "token", act.Token.String(), "n", n)
	if action == nil {
		return true, nil
	}

	err := e.call(action, &FireContext{e: e, act: act})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ruleerr.ErrHalt):
		e.Halt()
		return true, nil
	case ruleerr.IsControl(err):
		return true, nil
	default:
		return true, NewActionError(act.Rule.Name, err)
	}
}

// call runs an action, turning a panic into an error.
func (e *Engine) call(action Action, fc *FireContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in action: %v", r)
		}
	}()
	return action(fc)
}

func (e *Engine) recordFiring(act *agenda.Activation) {
	if e.journal == nil {
		return
	}
	f := store.NewFiring(e.runID, e.clock.Next(), act.Rule.Name, act.Salience, act.Token)
	if err := e.journal.WriteFiring(context.Background(), f); err != nil {
		e.logger.Error("journal write failed", "rule", act.Rule.Name, "error", err)
	}
}

// Fired returns the number of firings since the engine was created.
func (e *Engine) Fired() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}
