package fact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/value"
)

// DeadID is the id of a fact that has been retracted or never asserted.
const DeadID int64 = -1

// Fact is a typed record in working memory.
type Fact struct {
	id       int64
	template *Template
	slots    []value.Value
}

// New creates an unasserted fact. Missing slots take the template default,
// or nil, or an empty list for multislots.
func New(t *Template, slots map[string]value.Value) (*Fact, error) {
	f := &Fact{id: DeadID, template: t, slots: make([]value.Value, len(t.slots))}
	for i, s := range t.slots {
		switch {
		case s.Default != nil:
			f.slots[i] = s.Default
		case s.Multi:
			f.slots[i] = value.List{}
		default:
			f.slots[i] = value.Nil
		}
	}
	for name, v := range slots {
		i := t.SlotIndex(name)
		if i < 0 {
			return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "assert",
				fmt.Sprintf("template %s has no slot %q", t.name, name), value.Symbol(name))
		}
		if err := f.checkSlot(i, v); err != nil {
			return nil, err
		}
		f.slots[i] = v
	}
	return f, nil
}

// NewAccumulate creates a fact of the accumulate class carrying result.
func NewAccumulate(result value.Value) *Fact {
	return &Fact{id: DeadID, template: AccumulateTemplate, slots: []value.Value{result}}
}

// ID returns the fact id, or DeadID.
func (f *Fact) ID() int64 { return f.id }

// Alive reports whether the fact is currently in working memory.
func (f *Fact) Alive() bool { return f.id != DeadID }

// Template returns the fact's template.
func (f *Fact) Template() *Template { return f.template }

// Type returns the fact's type name.
func (f *Fact) Type() string { return f.template.name }

// ParentType returns the parent type name, or "" at the top of the chain.
func (f *Fact) ParentType() string {
	if f.template.parent == nil {
		return ""
	}
	return f.template.parent.name
}

// Len returns the number of slots.
func (f *Fact) Len() int { return len(f.slots) }

// Get returns the value at a slot index.
func (f *Fact) Get(i int) (value.Value, error) {
	if i < 0 || i >= len(f.slots) {
		return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "get",
			fmt.Sprintf("slot index out of range for %s", f.template.name), value.Int(i))
	}
	return f.slots[i], nil
}

// GetSub returns element sub of the list at slot i, or the slot itself when
// sub is negative.
func (f *Fact) GetSub(i, sub int) (value.Value, error) {
	v, err := f.Get(i)
	if err != nil || sub < 0 {
		return v, err
	}
	l, ok := v.(value.List)
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "get",
			fmt.Sprintf("slot %s of %s is not a multislot", f.template.slots[i].Name, f.template.name), v)
	}
	if sub >= len(l) {
		return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "get",
			fmt.Sprintf("subslot index out of range for %s", f.template.slots[i].Name), value.Int(sub))
	}
	return l[sub], nil
}

// Slot returns the value of a named slot.
func (f *Fact) Slot(name string) (value.Value, error) {
	i := f.template.SlotIndex(name)
	if i < 0 {
		return nil, ruleerr.New(ruleerr.CodeNoSuchSlot, "get",
			fmt.Sprintf("template %s has no slot %q", f.template.name, name), value.Symbol(name))
	}
	return f.slots[i], nil
}

// Values returns a name-to-value map of the fact's slots.
func (f *Fact) Values() map[string]value.Value {
	m := make(map[string]value.Value, len(f.slots))
	for i, s := range f.template.slots {
		m[s.Name] = f.slots[i]
	}
	return m
}

// Clone returns an unasserted copy with the same slot values.
func (f *Fact) Clone() *Fact {
	c := &Fact{id: DeadID, template: f.template, slots: make([]value.Value, len(f.slots))}
	copy(c.slots, f.slots)
	return c
}

// Same reports whether two references denote the same match element.
// Accumulate facts are all the same element.
func Same(a, b *Fact) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.template.accum && b.template.accum
}

// IdentityKey returns the key that Same is consistent with.
func (f *Fact) IdentityKey() string {
	if f.template.accum {
		return "acc"
	}
	return "f" + strconv.FormatInt(f.id, 10)
}

// ContentKey identifies a fact by type and slot values. Working memory
// uses it to reject duplicate asserts.
func (f *Fact) ContentKey() string {
	var b strings.Builder
	b.WriteString(f.template.name)
	for _, v := range f.slots {
		b.WriteByte('|')
		b.WriteString(value.Key(v))
	}
	return b.String()
}

// String renders the fact as (type (slot value)...).
func (f *Fact) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(f.template.name)
	for i, s := range f.template.slots {
		fmt.Fprintf(&b, " (%s", s.Name)
		if l, ok := f.slots[i].(value.List); ok {
			for _, e := range l {
				b.WriteByte(' ')
				b.WriteString(e.String())
			}
		} else {
			b.WriteByte(' ')
			b.WriteString(f.slots[i].String())
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

func (f *Fact) checkSlot(i int, v value.Value) error {
	if v == nil {
		return ruleerr.New(ruleerr.CodeBadArgument, "assert",
			fmt.Sprintf("nil value for slot %s", f.template.slots[i].Name), nil)
	}
	_, isList := v.(value.List)
	if f.template.slots[i].Multi && !isList {
		return ruleerr.New(ruleerr.CodeBadArgument, "assert",
			fmt.Sprintf("multislot %s requires a list", f.template.slots[i].Name), v)
	}
	return nil
}

// The methods below are the mutation surface reserved for working memory.

// SetID assigns the fact's id. Working memory calls it on assert and sets
// DeadID on retract.
func (f *Fact) SetID(id int64) { f.id = id }

// Set replaces a slot value in place. Working memory calls it between the
// MODIFY_REMOVE and MODIFY_ADD propagations of a modify.
func (f *Fact) Set(i int, v value.Value) error {
	if i < 0 || i >= len(f.slots) {
		return ruleerr.New(ruleerr.CodeNoSuchSlot, "modify",
			fmt.Sprintf("slot index out of range for %s", f.template.name), value.Int(i))
	}
	if err := f.checkSlot(i, v); err != nil {
		return err
	}
	f.slots[i] = v
	return nil
}
