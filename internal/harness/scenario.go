package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: templates, rules, initial
// facts, a flow of working-memory operations, and assertions on the
// resulting firings and final facts.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Strategy is the conflict resolution strategy. Defaults to depth.
	Strategy string `yaml:"strategy,omitempty"`

	Templates []TemplateDef `yaml:"templates"`
	Rules     []RuleDef     `yaml:"rules"`

	// Facts are asserted before the flow and again after every reset.
	Facts []FactSpec `yaml:"facts,omitempty"`

	// Flow contains the operations to perform, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and working memory.
	// Supported types: fired, fire_order, fire_count, final_facts
	Assertions []Assertion `yaml:"assertions"`
}

// TemplateDef declares a fact template.
type TemplateDef struct {
	Name       string   `yaml:"name"`
	Parent     string   `yaml:"parent,omitempty"`
	Slots      []string `yaml:"slots,omitempty"`
	Multislots []string `yaml:"multislots,omitempty"`
}

// RuleDef declares a rule.
type RuleDef struct {
	Name     string       `yaml:"name"`
	Module   string       `yaml:"module,omitempty"`
	Salience int          `yaml:"salience,omitempty"`
	Logical  bool         `yaml:"logical,omitempty"`
	Patterns []PatternDef `yaml:"patterns"`
	Actions  []ActionStep `yaml:"actions,omitempty"`
}

// PatternDef matches one fact.
type PatternDef struct {
	Template    string          `yaml:"template"`
	Not         bool            `yaml:"not,omitempty"`
	Bind        string          `yaml:"bind,omitempty"`
	Constraints []ConstraintDef `yaml:"constraints,omitempty"`
}

// ConstraintDef restricts one slot. Exactly one of Value, Var and Length
// is meaningful, depending on Op.
type ConstraintDef struct {
	Slot    string `yaml:"slot"`
	Element int    `yaml:"element,omitempty"`
	Op      string `yaml:"op,omitempty"`
	Value   any    `yaml:"value,omitempty"`
	Var     string `yaml:"var,omitempty"`
	Length  int    `yaml:"length,omitempty"`
}

// FactSpec describes a fact to assert. Slot values are YAML scalars or
// lists; inside rule actions a string "?x" reads variable x.
type FactSpec struct {
	Template string         `yaml:"template"`
	Slots    map[string]any `yaml:"slots,omitempty"`
}

// ModifySpec changes slots of a fact. Flow steps name the fact by ID;
// rule actions name it by a bound fact variable in Fact.
type ModifySpec struct {
	ID    int64          `yaml:"id,omitempty"`
	Fact  string         `yaml:"fact,omitempty"`
	Slots map[string]any `yaml:"slots"`
}

// ActionStep is one statement of a rule's right-hand side. Exactly one
// field is set.
type ActionStep struct {
	Assert        *FactSpec   `yaml:"assert,omitempty"`
	AssertLogical *FactSpec   `yaml:"assert_logical,omitempty"`
	Retract       string      `yaml:"retract,omitempty"`
	Modify        *ModifySpec `yaml:"modify,omitempty"`
	Focus         string      `yaml:"focus,omitempty"`
	Halt          bool        `yaml:"halt,omitempty"`
}

// FlowStep is one working-memory operation. Exactly one operation is set.
type FlowStep struct {
	Assert   *FactSpec   `yaml:"assert,omitempty"`
	Retract  int64       `yaml:"retract,omitempty"`
	Modify   *ModifySpec `yaml:"modify,omitempty"`
	Run      *int        `yaml:"run,omitempty"`
	Reset    bool        `yaml:"reset,omitempty"`
	Strategy string      `yaml:"strategy,omitempty"`
	Focus    string      `yaml:"focus,omitempty"`

	// Expect validates the step's outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Fired is the number of firings a run step must report.
	Fired *int `yaml:"fired,omitempty"`

	// Fact is the id an assert step must return.
	Fact int64 `yaml:"fact,omitempty"`

	// Agenda is the number of activations queued after the step.
	Agenda *int `yaml:"agenda,omitempty"`

	// Error is a substring of the error the step must fail with.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the firing trace or final working memory.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": rule fired, with exactly Facts if given
	// - "fire_order": rules first fired in the order of Rules
	// - "fire_count": rule fired exactly Count times
	// - "final_facts": live facts of Template matching Where
	Type string `yaml:"type"`

	Rule  string   `yaml:"rule,omitempty"`
	Facts []int64  `yaml:"facts,omitempty"`
	Rules []string `yaml:"rules,omitempty"`

	// Count is the expected number of firings (fire_count) or matching
	// facts (final_facts). A final_facts assertion without count expects
	// at least one match.
	Count *int `yaml:"count,omitempty"`

	Template string         `yaml:"template,omitempty"`
	Where    map[string]any `yaml:"where,omitempty"`
}

// Assertion type constants.
const (
	AssertFired      = "fired"
	AssertFireOrder  = "fire_order"
	AssertFireCount  = "fire_count"
	AssertFinalFacts = "final_facts"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Templates) == 0 {
		return fmt.Errorf("templates list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, t := range s.Templates {
		if t.Name == "" {
			return fmt.Errorf("templates[%d]: name is required", i)
		}
	}
	for i, r := range s.Rules {
		if err := validateRule(i, &r); err != nil {
			return err
		}
	}
	for i, f := range s.Facts {
		if f.Template == "" {
			return fmt.Errorf("facts[%d]: template is required", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateFlowStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(index int, r *RuleDef) error {
	if r.Name == "" {
		return fmt.Errorf("rules[%d]: name is required", index)
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("rules[%d]: patterns list is required and must be non-empty", index)
	}
	for j, a := range r.Actions {
		n := 0
		for _, set := range []bool{
			a.Assert != nil, a.AssertLogical != nil, a.Retract != "",
			a.Modify != nil, a.Focus != "", a.Halt,
		} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("rules[%d].actions[%d]: exactly one action is required, got %d", index, j, n)
		}
		if a.Modify != nil && a.Modify.Fact == "" {
			return fmt.Errorf("rules[%d].actions[%d]: modify needs a fact variable", index, j)
		}
	}
	return nil
}

// validateFlowStep checks that a step names exactly one operation.
func validateFlowStep(index int, step *FlowStep) error {
	n := 0
	for _, set := range []bool{
		step.Assert != nil, step.Retract != 0, step.Modify != nil, step.Run != nil,
		step.Reset, step.Strategy != "", step.Focus != "",
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("flow[%d]: exactly one operation is required, got %d", index, n)
	}
	if step.Assert != nil && step.Assert.Template == "" {
		return fmt.Errorf("flow[%d].assert: template is required", index)
	}
	if step.Modify != nil && step.Modify.ID == 0 {
		return fmt.Errorf("flow[%d].modify: id is required", index)
	}
	if step.Expect != nil && step.Expect.Fired != nil && step.Run == nil {
		return fmt.Errorf("flow[%d].expect: fired only applies to run steps", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired", index)
		}
	case AssertFireOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for fire_order", index)
		}
	case AssertFireCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fire_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for fire_count", index)
		}
	case AssertFinalFacts:
		if a.Template == "" {
			return fmt.Errorf("assertions[%d]: template is required for final_facts", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
