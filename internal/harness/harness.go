package harness

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/store"
	"github.com/roach88/rete/internal/value"
)

// Harness is the test execution engine.
// It runs one scenario against a real engine journaling into a SQLite
// store.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	scenario *Scenario
	logger   *slog.Logger
}

// Option configures Run and Load.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	maxFirings int
	store      *store.Store
	runIDs     engine.RunIDGenerator
	watch      io.Writer
}

// WithLogger routes engine and harness logs to l. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxFirings sets the engine's firing quota per run step.
func WithMaxFirings(n int) Option {
	return func(c *config) { c.maxFirings = n }
}

// WithStore journals into st instead of a fresh in-memory store. The
// caller owns st.
func WithStore(st *store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithRunIDs names the journal run. By default the run id is the scenario
// name, which only suits a store holding one run per scenario.
func WithRunIDs(g engine.RunIDGenerator) Option {
	return func(c *config) { c.runIDs = g }
}

// WithWatch copies the engine's watch output to w as it is flushed.
func WithWatch(w io.Writer) Option {
	return func(c *config) { c.watch = w }
}

func newConfig(scenario *Scenario, opts []Option) config {
	cfg := config{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxFirings: engine.DefaultMaxFirings,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runIDs == nil {
		cfg.runIDs = engine.NewFixedGenerator(scenario.Name)
	}
	return cfg
}

// Load creates an engine with the scenario's templates and rules
// installed and no facts asserted. The caller closes the engine.
func Load(scenario *Scenario, opts ...Option) (*engine.Engine, error) {
	cfg := newConfig(scenario, opts)
	h, err := newHarness(scenario, cfg)
	if err != nil {
		return nil, err
	}
	return h.engine, nil
}

func newHarness(scenario *Scenario, cfg config, extra ...engine.EngineOption) (*Harness, error) {
	engOpts := []engine.EngineOption{
		engine.WithLogger(cfg.logger),
		engine.WithRunIDs(cfg.runIDs),
		engine.WithMaxFirings(cfg.maxFirings),
	}
	if scenario.Strategy != "" {
		engOpts = append(engOpts, engine.WithStrategy(scenario.Strategy))
	}
	eng, err := engine.New(append(engOpts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	h := &Harness{
		store:    cfg.store,
		engine:   eng,
		scenario: scenario,
		logger:   cfg.logger,
	}
	if err := h.load(); err != nil {
		eng.Close()
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return h, nil
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation unless
// WithStore is given. Run ids are fixed, so traces are reproducible.
//
// Execution flow:
// 1. Create the engine, journaling into the store
// 2. Define templates and install rules
// 3. Assert the scenario's initial facts
// 4. Execute flow steps with expect validation
// 5. Rebuild the trace and final facts from the journal
// 6. Evaluate assertions
//
// Step and assertion failures are reported in the result. The error is
// reserved for scenarios that cannot be executed at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := newConfig(scenario, opts)

	if cfg.store == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		cfg.store = st
	}

	var watch bytes.Buffer
	var w io.Writer = &watch
	if cfg.watch != nil {
		w = io.MultiWriter(&watch, cfg.watch)
	}

	h, err := newHarness(scenario, cfg,
		engine.WithJournal(cfg.store, scenario.Name),
		engine.WithWatch(w),
	)
	if err != nil {
		return nil, err
	}
	eng := h.engine
	defer eng.Close()

	ctx := context.Background()
	result := NewResult()
	result.RunID = eng.RunID()
	h.assertInitialFacts(result)
	h.executeFlow(ctx, result)

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	if err := eng.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush watch output: %w", err)
	}
	result.Watch = watch.String()

	for _, err := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(err.Error())
	}
	return result, nil
}

// load defines the scenario's templates and installs its rules.
func (h *Harness) load() error {
	for _, td := range h.scenario.Templates {
		slots := make([]fact.Slot, 0, len(td.Slots)+len(td.Multislots))
		for _, name := range td.Slots {
			slots = append(slots, fact.Slot{Name: name})
		}
		for _, name := range td.Multislots {
			slots = append(slots, fact.Slot{Name: name, Multi: true, Default: value.List{}})
		}
		if _, err := h.engine.DefineTemplate(td.Name, td.Parent, slots...); err != nil {
			return fmt.Errorf("template %s: %w", td.Name, err)
		}
	}
	for _, rd := range h.scenario.Rules {
		spec, err := compileRule(h.engine, rd)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rd.Name, err)
		}
		if _, err := h.engine.AddRule(spec, compileActions(rd.Actions)); err != nil {
			return fmt.Errorf("rule %s: %w", rd.Name, err)
		}
	}
	return nil
}

// assertInitialFacts asserts the scenario's facts, like a reset would.
func (h *Harness) assertInitialFacts(result *Result) {
	for i, fs := range h.scenario.Facts {
		slots, err := literalSlots(fs.Slots)
		if err == nil {
			_, err = h.engine.Assert(fs.Template, slots)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("facts[%d]: %v", i, err))
		}
	}
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Applies its operation to the engine
// 2. Compares the error, if any, against expect.error
// 3. Checks the returned fact id, firing count and agenda size
func (h *Harness) executeFlow(ctx context.Context, result *Result) {
	for i, step := range h.scenario.Flow {
		out, err := h.executeStep(ctx, &step)
		h.validateStep(i, &step, out, err, result)
		h.logger.Debug("flow step completed", "step", i, "op", stepOp(&step), "error", err)
	}
}

// stepOutcome is what a flow step produced besides its error.
type stepOutcome struct {
	fact  int64
	fired int
}

func (h *Harness) executeStep(ctx context.Context, step *FlowStep) (stepOutcome, error) {
	var out stepOutcome
	switch {
	case step.Assert != nil:
		slots, err := literalSlots(step.Assert.Slots)
		if err != nil {
			return out, err
		}
		f, err := h.engine.Assert(step.Assert.Template, slots)
		if f != nil {
			out.fact = f.ID()
		}
		return out, err
	case step.Retract != 0:
		return out, h.engine.Retract(step.Retract)
	case step.Modify != nil:
		slots, err := literalSlots(step.Modify.Slots)
		if err != nil {
			return out, err
		}
		f, err := h.engine.Modify(step.Modify.ID, slots)
		if f != nil {
			out.fact = f.ID()
		}
		return out, err
	case step.Run != nil:
		n, err := h.engine.Run(ctx, *step.Run)
		out.fired = n
		return out, err
	case step.Reset:
		if err := h.engine.Reset(); err != nil {
			return out, err
		}
		for _, fs := range h.scenario.Facts {
			slots, err := literalSlots(fs.Slots)
			if err != nil {
				return out, err
			}
			if _, err := h.engine.Assert(fs.Template, slots); err != nil {
				return out, err
			}
		}
		return out, nil
	case step.Strategy != "":
		_, err := h.engine.SetStrategy(step.Strategy)
		return out, err
	case step.Focus != "":
		h.engine.Focus(step.Focus)
		return out, nil
	}
	return out, fmt.Errorf("empty flow step")
}

func (h *Harness) validateStep(i int, step *FlowStep, out stepOutcome, err error, result *Result) {
	exp := step.Expect
	if exp == nil {
		exp = &ExpectClause{}
	}

	switch {
	case exp.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected error containing %q, got success",
			i, stepOp(step), exp.Error))
	case exp.Error != "" && !strings.Contains(err.Error(), exp.Error):
		result.AddError(fmt.Sprintf("flow[%d] %s: expected error containing %q, got %v",
			i, stepOp(step), exp.Error, err))
	case exp.Error == "" && err != nil:
		result.AddError(fmt.Sprintf("flow[%d] %s: unexpected error: %v", i, stepOp(step), err))
	}

	if exp.Fact != 0 && out.fact != exp.Fact {
		result.AddError(fmt.Sprintf("flow[%d] %s: expected fact f-%d, got f-%d",
			i, stepOp(step), exp.Fact, out.fact))
	}
	if exp.Fired != nil && out.fired != *exp.Fired {
		result.AddError(fmt.Sprintf("flow[%d] run: expected %d firings, got %d",
			i, *exp.Fired, out.fired))
	}
	if exp.Agenda != nil {
		if n := h.engine.Agenda().Len(); n != *exp.Agenda {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %d activations, got %d",
				i, stepOp(step), *exp.Agenda, n))
		}
	}
}

// collect rebuilds the trace and final facts from the journal and checks
// the replayed working memory against the engine's.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	runID := h.engine.RunID()
	events, err := h.store.ReadFactEvents(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read fact events: %w", err)
	}
	firings, err := h.store.ReadFirings(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read firings: %w", err)
	}

	for _, ev := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Type:     ev.Op,
			Seq:      ev.Seq,
			Fact:     ev.FactID,
			Template: ev.Type,
			Slots:    ev.Slots,
		})
	}
	for _, f := range firings {
		result.Trace = append(result.Trace, TraceEvent{
			Type:  EventFire,
			Seq:   f.Seq,
			Rule:  f.Rule,
			Facts: f.Facts,
		})
	}
	slices.SortFunc(result.Trace, func(a, b TraceEvent) int { return cmp.Compare(a.Seq, b.Seq) })

	live, err := h.store.ReplayFacts(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to replay facts: %w", err)
	}
	for _, lf := range live {
		result.Facts = append(result.Facts, FactState{ID: lf.ID, Template: lf.Type, Slots: lf.Slots})
	}

	wm := h.engine.Facts()
	if len(wm) != len(live) {
		result.AddError(fmt.Sprintf("journal replay has %d facts, working memory has %d", len(live), len(wm)))
		return nil
	}
	for i, f := range wm {
		ev, err := store.NewFactEvent(runID, 0, store.OpAssert, f)
		if err != nil {
			return err
		}
		if live[i].ID != f.ID() || live[i].Slots != ev.Slots {
			result.AddError(fmt.Sprintf("journal replay diverges from working memory at f-%d", f.ID()))
			return nil
		}
	}
	return nil
}

// stepOp names a flow step's operation for messages.
func stepOp(step *FlowStep) string {
	switch {
	case step.Assert != nil:
		return "assert " + step.Assert.Template
	case step.Retract != 0:
		return fmt.Sprintf("retract f-%d", step.Retract)
	case step.Modify != nil:
		return fmt.Sprintf("modify f-%d", step.Modify.ID)
	case step.Run != nil:
		return "run"
	case step.Reset:
		return "reset"
	case step.Strategy != "":
		return "strategy " + step.Strategy
	case step.Focus != "":
		return "focus " + step.Focus
	}
	return "empty"
}
