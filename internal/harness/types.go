package harness

// Trace event types.
const (
	EventAssert  = "assert"
	EventRetract = "retract"
	EventModify  = "modify"
	EventFire    = "fire"
)

// TraceEvent is one journaled working-memory change or rule firing.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// Fact events.
	Fact     int64  `json:"fact,omitempty"`
	Template string `json:"template,omitempty"`
	Slots    string `json:"slots,omitempty"`

	// Firings.
	Rule  string  `json:"rule,omitempty"`
	Facts []int64 `json:"facts,omitempty"`
}

// FactState is a fact alive at the end of a scenario. Slots is canonical
// JSON.
type FactState struct {
	ID       int64  `json:"id"`
	Template string `json:"template"`
	Slots    string `json:"slots"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// RunID is the journal run the scenario was recorded under.
	RunID string `json:"run_id"`

	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains fact events and firings in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Facts is working memory at the end of the flow, rebuilt from the
	// journal.
	Facts []FactState `json:"facts,omitempty"`

	// Watch is the engine's watch output.
	Watch string `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Firings returns the fire events of the trace.
func (r *Result) Firings() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventFire {
			out = append(out, ev)
		}
	}
	return out
}
