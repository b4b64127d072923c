package rete

import (
	"slices"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// Function is a dynamic expression embedded in a test. The expression
// evaluator that produces Functions lives outside the network.
type Function interface {
	Call(ctx *Context) (value.Value, error)
	String() string
}

// FuncOf adapts a Go function into a Function.
func FuncOf(name string, fn func(ctx *Context) (value.Value, error)) Function {
	return namedFunc{name: name, fn: fn}
}

type namedFunc struct {
	name string
	fn   func(ctx *Context) (value.Value, error)
}

func (f namedFunc) Call(ctx *Context) (value.Value, error) { return f.fn(ctx) }

func (f namedFunc) String() string { return "(" + f.name + ")" }

// Resolver evaluates dynamic expressions on behalf of the network.
type Resolver interface {
	Resolve(fn Function, ctx *Context) (value.Value, error)
}

// Context is the per-propagation evaluation context. It carries the fact
// that entered the network, the token currently under test, the slots a
// modify changed, and the resolver for dynamic expressions.
type Context struct {
	fact     *fact.Fact
	tok      *token.Token
	changed  []int
	resolver Resolver
}

// NewContext creates a context for a propagation of f.
func NewContext(f *fact.Fact, resolver Resolver) *Context {
	return &Context{fact: f, resolver: resolver}
}

// WithChangedSlots records the slot indexes touched by a modify.
func (c *Context) WithChangedSlots(slots []int) *Context {
	c.changed = slots
	return c
}

// Fact returns the fact being propagated.
func (c *Context) Fact() *fact.Fact { return c.fact }

// Token returns the token currently under test.
func (c *Context) Token() *token.Token { return c.tok }

// ChangedSlots returns the slot indexes a modify changed, or nil when the
// propagation is not part of a modify.
func (c *Context) ChangedSlots() []int { return c.changed }

// SlotChanged reports whether slot i was changed by the current modify.
// Outside a modify every slot counts as changed.
func (c *Context) SlotChanged(i int) bool {
	if c.changed == nil {
		return true
	}
	return slices.Contains(c.changed, i)
}

// Resolve evaluates fn against this context.
func (c *Context) Resolve(fn Function) (value.Value, error) {
	if c.resolver != nil {
		return c.resolver.Resolve(fn, c)
	}
	return fn.Call(c)
}

func (c *Context) setToken(t *token.Token) { c.tok = t }
