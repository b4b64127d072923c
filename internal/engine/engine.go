package engine

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/rete/internal/agenda"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/logical"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/store"
	"github.com/roach88/rete/internal/token"
)

// DefaultMaxFirings is the default maximum number of firings per Run.
// This stops runaway rule sets from looping forever.
const DefaultMaxFirings = 10000

// Journal records working-memory changes and firings. *store.Store
// implements it.
type Journal interface {
	BeginRun(ctx context.Context, run store.Run) error
	WriteFactEvent(ctx context.Context, ev store.FactEvent) error
	WriteFiring(ctx context.Context, f store.Firing) error
}

var _ Journal = (*store.Store)(nil)

// Engine owns working memory, the network and the agenda.
//
// Thread-safety model:
//   - every working-memory mutation and the propagation it triggers runs
//     under mu
//   - the agenda locks per module
//   - actions run without mu and may call back into the engine
type Engine struct {
	mu      sync.Mutex
	net     *rete.Network
	builder *rete.Builder
	agenda  *agenda.Agenda
	clock   *Clock

	nextID    int64
	facts     map[int64]*fact.Fact
	byContent map[string]*fact.Fact
	templates map[string]*fact.Template

	actions  map[string]Action
	handlers map[string]*logical.Handler

	// support maps a logically asserted fact id to its supporters, keyed
	// by rule name and token key.
	support map[int64]map[string]bool

	resolver   rete.Resolver
	logger     *slog.Logger
	strategy   string
	maxFirings int
	fired      int64
	halted     atomic.Bool
	closed     bool

	journal  Journal
	label    string
	runIDs   RunIDGenerator
	runID    string
	watchOut io.Writer
	watch    *flusher
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used by the engine, its network and agenda.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithWatch echoes fact changes and firings to w. Output is buffered and
// flushed by a background goroutine; Close flushes what is left.
func WithWatch(w io.Writer) EngineOption {
	return func(e *Engine) { e.watchOut = w }
}

// WithJournal records the session in j under a new run labelled label.
func WithJournal(j Journal, label string) EngineOption {
	return func(e *Engine) {
		e.journal = j
		e.label = label
	}
}

// WithRunIDs sets the generator naming the session.
func WithRunIDs(g RunIDGenerator) EngineOption {
	return func(e *Engine) { e.runIDs = g }
}

// WithResolver sets the evaluator of dynamic tests.
func WithResolver(r rete.Resolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithStrategy sets the conflict resolution strategy by name.
func WithStrategy(name string) EngineOption {
	return func(e *Engine) { e.strategy = name }
}

// WithMaxFirings sets the firing quota of each Run.
//
// Default: 10000 firings (DefaultMaxFirings)
// Use WithMaxFirings(0) to disable the quota.
func WithMaxFirings(n int) EngineOption {
	return func(e *Engine) { e.maxFirings = n }
}

// WithClock sets the logical clock. Used to resume numbering after a
// journaled session.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// New creates an engine with empty working memory and no rules.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		clock:      NewClock(),
		facts:      make(map[int64]*fact.Fact),
		byContent:  make(map[string]*fact.Fact),
		templates:  make(map[string]*fact.Template),
		actions:    make(map[string]Action),
		handlers:   make(map[string]*logical.Handler),
		support:    make(map[int64]map[string]bool),
		logger:     slog.Default(),
		strategy:   agenda.DefaultStrategy,
		maxFirings: DefaultMaxFirings,
		runIDs:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}

	strategy, err := agenda.LookupStrategy(e.strategy)
	if err != nil {
		return nil, err
	}
	e.agenda = agenda.New(agenda.WithStrategy(strategy), agenda.WithLogger(e.logger))
	e.net = rete.NewNetwork(
		rete.WithClock(e.clock),
		rete.WithSink(e.agenda),
		rete.WithLogger(e.logger),
	)
	e.builder = &rete.Builder{Net: e.net, Logical: e.newHandler}
	e.runID = e.runIDs.Generate()

	if e.journal != nil {
		run := store.Run{ID: e.runID, Seq: e.clock.Current(), Label: e.label}
		if err := e.journal.BeginRun(context.Background(), run); err != nil {
			return nil, fmt.Errorf("begin journal run: %w", err)
		}
	}
	if e.watchOut != nil {
		e.watch = newFlusher(e.watchOut)
	}

	e.logger.Debug("engine created", "run_id", e.runID, "strategy", strategy.Name())
	return e, nil
}

// Close flushes watch output and stops the flush goroutine. The engine
// rejects mutations afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.watch != nil {
		return e.watch.Close()
	}
	return nil
}

// RunID returns the session id used in the journal.
func (e *Engine) RunID() string { return e.runID }

// Agenda returns the engine's agenda.
func (e *Engine) Agenda() *agenda.Agenda { return e.agenda }

// SetStrategy switches the conflict resolution strategy and returns the
// previous one.
func (e *Engine) SetStrategy(name string) (string, error) {
	prev, err := e.agenda.SetStrategy(name)
	if err != nil {
		return "", err
	}
	return prev.Name(), nil
}

// Focus pushes module onto the focus stack.
func (e *Engine) Focus(module string) {
	e.agenda.Focus(module)
}

// ListNodes renders the network.
func (e *Engine) ListNodes() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.ListNodes()
}

// AddRule installs a rule and fires it against the facts already in
// working memory: existing nodes are grown old and every live fact is
// replayed with UPDATE, so each existing match reaches the new rule once.
func (e *Engine) AddRule(spec rete.RuleSpec, action Action) (*rete.Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClosed
	}

	e.net.GrowOld()
	rule, err := e.builder.Build(spec)
	if err != nil {
		if _, exists := e.net.Rule(spec.Name); !exists {
			delete(e.handlers, spec.Name)
		}
		return nil, err
	}
	e.actions[rule.Name] = action

	for _, f := range e.liveFactsLocked() {
		if err := e.net.Propagate(token.Update, f, rete.NewContext(f, e.resolver)); err != nil {
			return rule, fmt.Errorf("replay facts into rule %s: %w", rule.Name, err)
		}
	}

	e.logger.Debug("rule added", "rule", rule.Name, "module", rule.Module, "nodes", e.net.NodeCount())
	return rule, nil
}

// newHandler is the builder's hook for logical rules.
func (e *Engine) newHandler(r *rete.Rule) rete.TokenListener {
	h := logical.NewHandler(r, &supportRegistry{e: e, rule: r.Name}, e.logger)
	e.handlers[r.Name] = h
	return h
}

// RemoveRule removes a rule, its nodes and its activations. Facts the rule
// supported logically stay in working memory.
func (e *Engine) RemoveRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	rule, err := e.net.RemoveRule(name)
	if err != nil {
		return err
	}
	n := e.agenda.RemoveRule(rule)
	delete(e.actions, name)
	delete(e.handlers, name)
	e.logger.Debug("rule removed", "rule", name, "activations", n)
	return nil
}

// Rules returns the installed rule names, sorted.
func (e *Engine) Rules() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.RuleNames()
}

// Rule returns an installed rule.
func (e *Engine) Rule(name string) (*rete.Rule, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Rule(name)
}

// Reset sends CLEAR through the network, empties the agenda and retracts
// every fact. Rules and templates stay; fact ids keep counting up.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	return e.resetLocked()
}

func (e *Engine) resetLocked() error {
	if err := e.net.Clear(rete.NewContext(nil, e.resolver)); err != nil {
		return fmt.Errorf("clear network: %w", err)
	}
	e.agenda.Clear()

	for _, f := range e.liveFactsLocked() {
		e.record(store.OpRetract, f)
		e.echo("<==", f)
		f.SetID(fact.DeadID)
	}
	clear(e.facts)
	clear(e.byContent)
	clear(e.support)
	e.logger.Debug("working memory reset")
	return nil
}

// Clear resets working memory and removes every rule and template.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if err := e.resetLocked(); err != nil {
		return err
	}
	for _, name := range e.net.RuleNames() {
		if _, err := e.net.RemoveRule(name); err != nil {
			return err
		}
	}
	clear(e.actions)
	clear(e.handlers)
	clear(e.templates)
	return nil
}

func (e *Engine) liveFactsLocked() []*fact.Fact {
	out := make([]*fact.Fact, 0, len(e.facts))
	for _, f := range e.facts {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *fact.Fact) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// record writes a fact event to the journal. Journal failures are logged
// and do not fail the mutation.
func (e *Engine) record(op string, f *fact.Fact) {
	if e.journal == nil {
		return
	}
	ev, err := store.NewFactEvent(e.runID, e.clock.Next(), op, f)
	if err == nil {
		err = e.journal.WriteFactEvent(context.Background(), ev)
	}
	if err != nil {
		e.logger.Error("journal write failed", "op", op, "fact", f.ID(), "error", err)
	}
}

func (e *Engine) echo(arrow string, f *fact.Fact) {
	if e.watch == nil {
		return
	}
	fmt.Fprintf(e.watch, "%s f-%d %s\n", arrow, f.ID(), f)
}
