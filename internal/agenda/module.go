package agenda

import (
	"sync"

	"github.com/roach88/rete/internal/token"
)

// ModuleAgenda is the activation queue of one rule module.
type ModuleAgenda struct {
	name string

	mu    sync.Mutex
	queue *Queue
	byKey map[string]*Activation
}

// NewModuleAgenda creates an empty module agenda ordered by s.
func NewModuleAgenda(name string, s Strategy) *ModuleAgenda {
	return &ModuleAgenda{name: name, queue: NewQueue(s), byKey: make(map[string]*Activation)}
}

// Name returns the module name.
func (m *ModuleAgenda) Name() string { return m.name }

// Add queues a. An activation for the same rule and token replaces the
// queued one.
func (m *ModuleAgenda) Add(a *Activation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := a.key()
	if old, ok := m.byKey[k]; ok {
		m.queue.Remove(old)
	}
	m.byKey[k] = a
	m.queue.Push(a)
}

// Remove withdraws the activation of rule for tok and returns it, or nil.
func (m *ModuleAgenda) Remove(rule string, tok *token.Token) *Activation {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := activationKey(rule, tok)
	a, ok := m.byKey[k]
	if !ok {
		return nil
	}
	delete(m.byKey, k)
	m.queue.Remove(a)
	return a
}

// RemoveRule withdraws every activation of rule and returns how many were
// queued.
func (m *ModuleAgenda) RemoveRule(rule string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, a := range m.byKey {
		if a.Rule.Name == rule {
			delete(m.byKey, k)
			m.queue.Remove(a)
			n++
		}
	}
	return n
}

// Next pops the first activation, or returns nil when the module is empty.
func (m *ModuleAgenda) Next() *Activation {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.queue.Pop()
	if a != nil {
		delete(m.byKey, a.key())
	}
	return a
}

// Peek returns the first activation without removing it.
func (m *ModuleAgenda) Peek() *Activation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Peek()
}

// Len returns the number of queued activations.
func (m *ModuleAgenda) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Strategy returns the module's ordering.
func (m *ModuleAgenda) Strategy() Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Strategy()
}

// SetStrategy re-sorts the queued activations under s.
func (m *ModuleAgenda) SetStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.SetStrategy(s)
}

// List returns the queued activations in firing order.
func (m *ModuleAgenda) List() []*Activation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Sorted()
}

// Clear drops every activation.
func (m *ModuleAgenda) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Clear()
	clear(m.byKey)
}
