package engine

import (
	"fmt"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/store"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// DefineTemplate registers a template. The parent, if any, must already
// be defined.
func (e *Engine) DefineTemplate(name, parent string, slots ...fact.Slot) (*fact.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var p *fact.Template
	if parent != "" {
		var ok bool
		if p, ok = e.templates[parent]; !ok {
			return nil, ruleerr.New(ruleerr.CodeNoSuchTemplate, "deftemplate",
				fmt.Sprintf("unknown parent template %s", parent), value.Symbol(parent))
		}
	}
	if _, dup := e.templates[name]; dup {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "deftemplate",
			fmt.Sprintf("template %s already exists", name), value.Symbol(name))
	}
	t, err := fact.NewTemplate(name, p, slots...)
	if err != nil {
		return nil, err
	}
	e.templates[name] = t
	return t, nil
}

// Template returns a defined template.
func (e *Engine) Template(name string) (*fact.Template, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[name]
	return t, ok
}

// Assert creates a fact of the named template and asserts it.
func (e *Engine) Assert(typ string, slots map[string]value.Value) (*fact.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.newFactLocked(typ, slots)
	if err != nil {
		return nil, err
	}
	return e.assertLocked(f)
}

// AssertFact asserts an unasserted fact. When a fact with the same content
// is already present the existing fact is returned and nothing
// propagates.
func (e *Engine) AssertFact(f *fact.Fact) (*fact.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f.Alive() {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "assert",
			fmt.Sprintf("fact f-%d is already asserted", f.ID()), value.Int(f.ID()))
	}
	return e.assertLocked(f)
}

func (e *Engine) newFactLocked(typ string, slots map[string]value.Value) (*fact.Fact, error) {
	if e.closed {
		return nil, errClosed
	}
	t, ok := e.templates[typ]
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeNoSuchTemplate, "assert",
			fmt.Sprintf("unknown template %s", typ), value.Symbol(typ))
	}
	return fact.New(t, slots)
}

func (e *Engine) assertLocked(f *fact.Fact) (*fact.Fact, error) {
	if e.closed {
		return nil, errClosed
	}
	if existing, ok := e.byContent[f.ContentKey()]; ok {
		// A plain assert makes the fact unconditional.
		delete(e.support, existing.ID())
		return existing, nil
	}
	e.insertLocked(f)
	return f, e.propagateAssertLocked(f)
}

// insertLocked gives f its id and indexes it without propagating.
func (e *Engine) insertLocked(f *fact.Fact) {
	e.nextID++
	f.SetID(e.nextID)
	e.facts[f.ID()] = f
	e.byContent[f.ContentKey()] = f
}

func (e *Engine) propagateAssertLocked(f *fact.Fact) error {
	e.record(store.OpAssert, f)
	e.echo("==>", f)
	if err := e.net.Propagate(token.Assert, f, rete.NewContext(f, e.resolver)); err != nil {
		return fmt.Errorf("assert f-%d: %w", f.ID(), err)
	}
	return nil
}

// Retract removes the fact with the given id from working memory.
func (e *Engine) Retract(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.liveLocked(id, "retract")
	if err != nil {
		return err
	}
	return e.retractLocked(f)
}

func (e *Engine) retractLocked(f *fact.Fact) error {
	id := f.ID()
	delete(e.facts, id)
	if e.byContent[f.ContentKey()] == f {
		delete(e.byContent, f.ContentKey())
	}
	delete(e.support, id)

	e.record(store.OpRetract, f)
	e.echo("<==", f)
	err := e.net.Propagate(token.Remove, f, rete.NewContext(f, e.resolver))
	f.SetID(fact.DeadID)
	if err != nil {
		return fmt.Errorf("retract f-%d: %w", id, err)
	}
	return nil
}

// Modify changes slots of a live fact in place. The network sees
// MODIFY_REMOVE with the old values, then MODIFY_ADD with the new ones.
// A modify that leaves every slot unchanged does nothing. When the new
// content duplicates another fact, f is retracted and the other fact is
// returned.
func (e *Engine) Modify(id int64, slots map[string]value.Value) (*fact.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.liveLocked(id, "modify")
	if err != nil {
		return nil, err
	}
	return e.modifyLocked(f, slots)
}

func (e *Engine) modifyLocked(f *fact.Fact, slots map[string]value.Value) (*fact.Fact, error) {
	next := f.Clone()
	var changed []int
	for name, v := range slots {
		i := f.Template().SlotIndex(name)
		if i < 0 {
			return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "modify",
				fmt.Sprintf("template %s has no slot %q", f.Type(), name), value.Symbol(name))
		}
		old, _ := f.Get(i)
		if err := next.Set(i, v); err != nil {
			return nil, err
		}
		if !value.Equal(old, v) {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return f, nil
	}
	if other, ok := e.byContent[next.ContentKey()]; ok && other != f {
		return other, e.retractLocked(f)
	}

	if e.byContent[f.ContentKey()] == f {
		delete(e.byContent, f.ContentKey())
	}
	ctx := rete.NewContext(f, e.resolver).WithChangedSlots(changed)
	if err := e.net.Propagate(token.ModifyRemove, f, ctx); err != nil {
		return nil, fmt.Errorf("modify f-%d: %w", f.ID(), err)
	}
	if !f.Alive() {
		// Retracted by a logical cascade during MODIFY_REMOVE.
		return f, nil
	}
	for _, i := range changed {
		v, _ := next.Get(i)
		if err := f.Set(i, v); err != nil {
			return nil, err
		}
	}
	e.byContent[f.ContentKey()] = f

	e.record(store.OpModify, f)
	e.echo("<=>", f)
	ctx = rete.NewContext(f, e.resolver).WithChangedSlots(changed)
	if err := e.net.Propagate(token.ModifyAdd, f, ctx); err != nil {
		return nil, fmt.Errorf("modify f-%d: %w", f.ID(), err)
	}
	return f, nil
}

// Duplicate asserts a copy of a live fact with some slots replaced.
func (e *Engine) Duplicate(id int64, slots map[string]value.Value) (*fact.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.liveLocked(id, "duplicate")
	if err != nil {
		return nil, err
	}
	c := f.Clone()
	for name, v := range slots {
		i := c.Template().SlotIndex(name)
		if i < 0 {
			return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "duplicate",
				fmt.Sprintf("template %s has no slot %q", c.Type(), name), value.Symbol(name))
		}
		if err := c.Set(i, v); err != nil {
			return nil, err
		}
	}
	return e.assertLocked(c)
}

// Fact returns the live fact with the given id.
func (e *Engine) Fact(id int64) (*fact.Fact, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, ok := e.facts[id]
	return f, ok
}

// Facts returns the live facts ordered by id.
func (e *Engine) Facts() []*fact.Fact {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liveFactsLocked()
}

// Supported reports whether the fact is held in working memory by logical
// support only.
func (e *Engine) Supported(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.support[id]
	return ok
}

func (e *Engine) liveLocked(id int64, routine string) (*fact.Fact, error) {
	if e.closed {
		return nil, errClosed
	}
	f, ok := e.facts[id]
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeNoSuchFact, routine,
			fmt.Sprintf("no fact with id %d", id), value.Int(id))
	}
	return f, nil
}
