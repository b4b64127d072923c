// Package fact provides templates and facts as consumed by the matching
// network.
//
// Working memory owns every Fact. The network and tokens hold plain
// pointers that stay meaningful while the fact's id is not DeadID.
package fact

import (
	"fmt"

	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/value"
)

// Slot describes one slot of a template.
type Slot struct {
	Name    string
	Multi   bool
	Default value.Value
}

// Template is a fact type. Templates form a single-inheritance chain
// through Parent; a child inherits its parent's slots ahead of its own.
type Template struct {
	name   string
	parent *Template
	slots  []Slot
	index  map[string]int
	accum  bool
}

// NewTemplate creates a template. The child's slot list is the parent's
// slot list followed by slots.
func NewTemplate(name string, parent *Template, slots ...Slot) (*Template, error) {
	if name == "" {
		return nil, ruleerr.New(ruleerr.CodeBadArgument, "deftemplate", "template name is required", nil)
	}
	t := &Template{name: name, parent: parent, index: make(map[string]int)}
	if parent != nil {
		t.slots = append(t.slots, parent.slots...)
	}
	t.slots = append(t.slots, slots...)
	for i, s := range t.slots {
		if _, dup := t.index[s.Name]; dup {
			return nil, ruleerr.New(ruleerr.CodeBadArgument, "deftemplate",
				fmt.Sprintf("duplicate slot %q in template %s", s.Name, name), value.Symbol(s.Name))
		}
		t.index[s.Name] = i
	}
	return t, nil
}

// MustTemplate is NewTemplate for static fixtures. It panics on error.
func MustTemplate(name string, parent *Template, slots ...Slot) *Template {
	t, err := NewTemplate(name, parent, slots...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template's type name.
func (t *Template) Name() string { return t.name }

// Parent returns the parent template, or nil at the top of the chain.
func (t *Template) Parent() *Template { return t.parent }

// Slots returns the template's slots, inherited ones first.
func (t *Template) Slots() []Slot { return t.slots }

// SlotIndex returns the index of a named slot, or -1.
func (t *Template) SlotIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// IsA reports whether the template is name or descends from it.
func (t *Template) IsA(name string) bool {
	for c := t; c != nil; c = c.parent {
		if c.name == name {
			return true
		}
	}
	return false
}

// Lineage returns the template's name followed by its ancestors' names.
func (t *Template) Lineage() []string {
	var names []string
	for c := t; c != nil; c = c.parent {
		names = append(names, c.name)
	}
	return names
}

// IsAccumulate reports whether facts of this template belong to the single
// accumulate equivalence class.
func (t *Template) IsAccumulate() bool { return t.accum }

// AccumulateTemplate is the type of facts produced by accumulate
// bookkeeping. All of its facts are interchangeable.
var AccumulateTemplate = &Template{
	name:  "__accumulate",
	index: map[string]int{"result": 0},
	slots: []Slot{{Name: "result"}},
	accum: true,
}
