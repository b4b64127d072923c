// Package harness runs YAML rule scenarios against the engine and checks
// the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: adult_check
//	description: "Adults get a badge, and lose it when they age down"
//	strategy: depth
//	templates:
//	  - name: person
//	    slots: [name, age]
//	  - name: badge
//	    slots: [name]
//	rules:
//	  - name: adult
//	    logical: true
//	    patterns:
//	      - template: person
//	        bind: p
//	        constraints:
//	          - { slot: name, var: n }
//	          - { slot: age, op: ">=", value: 18 }
//	    actions:
//	      - assert_logical: { template: badge, slots: { name: "?n" } }
//	facts:
//	  - { template: person, slots: { name: bob, age: 30 } }
//	flow:
//	  - run: 0
//	    expect: { fired: 1 }
//	  - modify: { id: 1, slots: { age: 12 } }
//	assertions:
//	  - type: fired
//	    rule: adult
//	    facts: [1]
//	  - type: final_facts
//	    template: badge
//	    count: 0
//
// Slot values are symbols unless written as "\"text\"" strings. Inside
// rule actions "?x" reads variable x of the firing match.
//
// # Execution
//
// Each scenario runs on a fresh engine journaling into an in-memory store.
// The trace and final facts are read back from the journal, so a passing
// scenario also proves the journal replays to the engine's working
// memory.
//
// # Golden Files
//
// RunWithGolden compares FormatTrace output with
// testdata/golden/<name>.golden. Run the tests with -update to rewrite
// them.
package harness
