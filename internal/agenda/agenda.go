package agenda

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/token"
)

// Agenda routes activations to per-module queues and tracks the focus
// stack. MAIN is always at the bottom of the stack and is never popped.
type Agenda struct {
	mu       sync.Mutex
	modules  map[string]*ModuleAgenda
	focus    []string
	strategy Strategy
	seq      atomic.Int64
	logger   *slog.Logger
}

var _ rete.ActivationSink = (*Agenda)(nil)

// Option configures an Agenda.
type Option func(*Agenda)

// WithStrategy sets the strategy of every module.
func WithStrategy(s Strategy) Option {
	return func(a *Agenda) { a.strategy = s }
}

// WithLogger sets the agenda's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agenda) { a.logger = l }
}

// New creates an agenda with an empty MAIN module in focus.
func New(opts ...Option) *Agenda {
	a := &Agenda{
		modules:  make(map[string]*ModuleAgenda),
		focus:    []string{rete.MainModule},
		strategy: Depth{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.modules[rete.MainModule] = NewModuleAgenda(rete.MainModule, a.strategy)
	return a
}

// Module returns the agenda of the named module, creating it on first use.
func (a *Agenda) Module(name string) *ModuleAgenda {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moduleLocked(name)
}

func (a *Agenda) moduleLocked(name string) *ModuleAgenda {
	m, ok := a.modules[name]
	if !ok {
		m = NewModuleAgenda(name, a.strategy)
		a.modules[name] = m
	}
	return m
}

// Modules returns the known module names, sorted.
func (a *Agenda) Modules() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.modules))
	for name := range a.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// AddActivation queues a new activation of rule for tok in the rule's
// module.
func (a *Agenda) AddActivation(rule *rete.Rule, tok *token.Token) error {
	act := newActivation(rule, tok, a.seq.Add(1))
	a.Module(rule.Module).Add(act)
	a.logger.Debug("activation added", "rule", rule.Name, "token", tok.String(), "salience", rule.Salience)
	return nil
}

// RemoveActivation withdraws the activation of rule for tok, if queued.
func (a *Agenda) RemoveActivation(rule *rete.Rule, tok *token.Token) error {
	if act := a.Module(rule.Module).Remove(rule.Name, tok); act != nil {
		a.logger.Debug("activation removed", "rule", rule.Name, "token", tok.String())
	}
	return nil
}

// RemoveRule withdraws every queued activation of rule.
func (a *Agenda) RemoveRule(rule *rete.Rule) int {
	return a.Module(rule.Module).RemoveRule(rule.Name)
}

// Focus pushes module onto the focus stack.
func (a *Agenda) Focus(module string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.moduleLocked(module)
	if a.focus[len(a.focus)-1] != module {
		a.focus = append(a.focus, module)
	}
}

// Focused returns the module on top of the focus stack.
func (a *Agenda) Focused() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.focus[len(a.focus)-1]
}

// PopFocus removes the top of the focus stack and returns it. MAIN alone
// is never removed.
func (a *Agenda) PopFocus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.popFocusLocked()
}

func (a *Agenda) popFocusLocked() string {
	top := a.focus[len(a.focus)-1]
	if len(a.focus) > 1 {
		a.focus = a.focus[:len(a.focus)-1]
	}
	return top
}

// FocusStack returns the focus stack, bottom first.
func (a *Agenda) FocusStack() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.focus)
}

// Next pops the next activation to fire. Modules that run dry lose focus
// until MAIN is reached. It returns nil when nothing in focus can fire.
func (a *Agenda) Next() *Activation {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		top := a.focus[len(a.focus)-1]
		if act := a.modules[top].Next(); act != nil {
			return act
		}
		if len(a.focus) == 1 {
			return nil
		}
		a.popFocusLocked()
	}
}

// Peek returns the activation Next would return, without popping it or
// the focus stack.
func (a *Agenda) Peek() *Activation {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.focus) - 1; i >= 0; i-- {
		if act := a.modules[a.focus[i]].Peek(); act != nil {
			return act
		}
	}
	return nil
}

// Len returns the number of queued activations across all modules.
func (a *Agenda) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, m := range a.modules {
		n += m.Len()
	}
	return n
}

// List returns the queued activations of module in firing order.
func (a *Agenda) List(module string) []*Activation {
	return a.Module(module).List()
}

// Strategy returns the strategy new modules get.
func (a *Agenda) Strategy() Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.strategy
}

// SetStrategy switches every module to the named strategy and re-sorts
// their queues.
func (a *Agenda) SetStrategy(name string) (Strategy, error) {
	s, err := LookupStrategy(name)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.strategy
	a.strategy = s
	for _, m := range a.modules {
		m.SetStrategy(s)
	}
	a.logger.Debug("strategy changed", "from", prev.Name(), "to", s.Name())
	return prev, nil
}

// Clear empties every module and resets focus to MAIN.
func (a *Agenda) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.modules {
		m.Clear()
	}
	a.focus = a.focus[:1]
}
