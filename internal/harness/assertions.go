package harness

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/rete/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatEvent(event))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failures.
func EvaluateAssertions(result *Result, assertions []Assertion) []error {
	var errs []error
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertFired:
			err = assertFired(result.Trace, a)
		case AssertFireOrder:
			err = assertFireOrder(result.Trace, a)
		case AssertFireCount:
			err = assertFireCount(result.Trace, a)
		case AssertFinalFacts:
			err = assertFinalFacts(result.Facts, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// assertFired checks that the rule fired, on exactly the given facts when
// facts are listed.
func assertFired(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type != EventFire || event.Rule != assertion.Rule {
			continue
		}
		if len(assertion.Facts) == 0 || slices.Equal(event.Facts, assertion.Facts) {
			return nil
		}
	}

	expected := "rule " + assertion.Rule
	if len(assertion.Facts) > 0 {
		expected += " on " + formatFacts(assertion.Facts)
	}
	return &AssertionError{
		Type:     AssertFired,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertFireOrder checks that the rules first fired in the given order.
// Other firings may come in between.
func assertFireOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected rule
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventFire {
			continue
		}
		if _, seen := positions[event.Rule]; !seen {
			positions[event.Rule] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all rules fired
	for _, rule := range assertion.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("all rules fired: %v", assertion.Rules),
				Actual:   fmt.Sprintf("rule %s never fired", rule),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Rules); i++ {
		prev, curr := assertion.Rules[i-1], assertion.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFireCount checks that the rule fired exactly Count times.
func assertFireCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventFire && event.Rule == assertion.Rule {
			count++
		}
	}
	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertFireCount,
			Expected: fmt.Sprintf("%d firings of %s", *assertion.Count, assertion.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalFacts counts the live facts of the template whose slots
// contain the Where values (subset semantics).
func assertFinalFacts(facts []FactState, assertion Assertion) error {
	want, err := canonicalWhere(assertion.Where)
	if err != nil {
		return fmt.Errorf("final_facts where: %w", err)
	}

	matched := 0
	for _, f := range facts {
		if f.Template != assertion.Template {
			continue
		}
		ok, err := slotsMatch(f.Slots, want)
		if err != nil {
			return fmt.Errorf("final_facts f-%d: %w", f.ID, err)
		}
		if ok {
			matched++
		}
	}

	whereDesc := formatWhere(assertion.Where)
	switch {
	case assertion.Count == nil && matched == 0:
		return &AssertionError{
			Type:     AssertFinalFacts,
			Expected: fmt.Sprintf("a %s fact where %s", assertion.Template, whereDesc),
			Actual:   "no matching fact",
		}
	case assertion.Count != nil && matched != *assertion.Count:
		return &AssertionError{
			Type:     AssertFinalFacts,
			Expected: fmt.Sprintf("%d %s facts where %s", *assertion.Count, assertion.Template, whereDesc),
			Actual:   fmt.Sprintf("%d matching facts", matched),
		}
	}
	return nil
}

// canonicalWhere renders each expected slot value in the journal's
// canonical JSON.
func canonicalWhere(where map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(where))
	for slot, raw := range where {
		v, err := value.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", slot, err)
		}
		data, err := value.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", slot, err)
		}
		out[slot] = string(data)
	}
	return out, nil
}

// slotsMatch reports whether the canonical slots object holds every
// wanted value. Canonical JSON is compact, so each member's raw bytes are
// already canonical.
func slotsMatch(slots string, want map[string]string) (bool, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal([]byte(slots), &members); err != nil {
		return false, err
	}
	for slot, expected := range want {
		actual, ok := members[slot]
		if !ok || string(actual) != expected {
			return false, nil
		}
	}
	return true, nil
}

// formatWhere creates a human-readable description of slot conditions.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func formatFacts(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("f-%d", id)
	}
	return strings.Join(parts, ",")
}

// formatEvent renders one trace line. Sequence numbers are left out so
// traces stay stable when unrelated clock ticks change.
func formatEvent(ev TraceEvent) string {
	if ev.Type == EventFire {
		return fmt.Sprintf("fire %s %s", ev.Rule, formatFacts(ev.Facts))
	}
	return fmt.Sprintf("%s f-%d %s %s", ev.Type, ev.Fact, ev.Template, ev.Slots)
}
