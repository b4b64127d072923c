package rete

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

func TestDispatch_WalksParentChain(t *testing.T) {
	net, sink := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "any-animal", Patterns: []PatternSpec{{Template: animalT}}})

	w := newWM(t, net)
	w.assert(dogT, map[string]any{"name": "rex", "legs": 4})
	w.assert(personT, map[string]any{"name": "bob"})

	assert.Equal(t, []string{"add any-animal f-1"}, sink.events)
}

func TestDispatch_SharesClassNodes(t *testing.T) {
	net, _ := newTestNetwork()
	first := net.AddClassNode("dog")
	second := net.AddClassNode("dog")
	other := net.AddClassNode("animal")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 3, net.NodeCount())
}

func TestClear_NeverRunsPredicates(t *testing.T) {
	var events []Event
	net, _ := newTestNetwork(WithListener(func(e Event) { events = append(events, e) }))

	calls := 0
	failing := FuncOf("fail", func(*Context) (value.Value, error) {
		calls++
		return nil, errors.New("predicate must not run")
	})

	class := net.AddClassNode("animal")
	filter := net.AddFilterNode(SlotTest{Slot: 0, Sub: -1, Op: OpEq, Fn: failing})
	require.NoError(t, net.AddSuccessor(class, filter, Left))
	listener := &recordingListener{}
	term, err := net.AddTerminalNode(&Rule{Name: "r"}, listener)
	require.NoError(t, err)
	require.NoError(t, net.AddSuccessor(filter, term, Left))

	require.NoError(t, net.Clear(NewContext(nil, nil)))

	assert.Zero(t, calls)
	assert.Equal(t, []token.Tag{token.Clear}, listener.tags)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, EventPatternMatched, e.Kind)
		assert.Equal(t, token.Clear, e.Tag)
	}
}

func TestSlotTest_EqualityPassesRetractions(t *testing.T) {
	net, sink := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "four", Patterns: []PatternSpec{{
		Template:    animalT,
		Constraints: []Constraint{{Slot: "legs", Value: value.Int(4)}},
	}}})

	w := newWM(t, net)
	f := w.assert(animalT, map[string]any{"name": "cat", "legs": 4})
	require.NoError(t, f.Set(1, value.Int(3)))
	w.retract(f)

	assert.Equal(t, []string{"add four f-1", "remove four f-1"}, sink.events)
}

func TestSlotTest_ComparisonRetestsRetractions(t *testing.T) {
	net, sink := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "many", Patterns: []PatternSpec{{
		Template:    animalT,
		Constraints: []Constraint{{Slot: "legs", Op: ">", Value: value.Int(3)}},
	}}})

	w := newWM(t, net)
	f := w.assert(animalT, map[string]any{"name": "cat", "legs": 4})
	require.NoError(t, f.Set(1, value.Int(2)))
	w.retract(f)

	assert.Equal(t, []string{"add many f-1"}, sink.events)
}

func TestSlotTest_DynamicOperandMarksPrepared(t *testing.T) {
	net, sink := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "dyn", Patterns: []PatternSpec{{
		Template: animalT,
		Constraints: []Constraint{{Slot: "legs", Fn: FuncOf("even", func(ctx *Context) (value.Value, error) {
			v, err := ctx.Fact().Get(1)
			if err != nil {
				return nil, err
			}
			return value.Bool(v.(value.Int)%2 == 0), nil
		})}},
	}}})

	w := newWM(t, net)
	w.assert(animalT, map[string]any{"name": "cat", "legs": 4})
	w.assert(animalT, map[string]any{"name": "bird", "legs": 3})

	require.Len(t, sink.tokens, 1)
	assert.True(t, sink.tokens[0].Prepared())
	assert.Equal(t, []string{"add dyn f-1"}, sink.events)
}

func TestLengthTest_IgnoresContent(t *testing.T) {
	net, sink := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "two-tricks", Patterns: []PatternSpec{{
		Template:    dogT,
		Constraints: []Constraint{{Slot: "tricks", Op: "length", Length: 2}},
	}}})

	w := newWM(t, net)
	w.assert(dogT, map[string]any{"name": "a", "tricks": []any{"sit", "roll"}})
	w.assert(dogT, map[string]any{"name": "b", "tricks": []any{1, 2}})
	w.assert(dogT, map[string]any{"name": "c", "tricks": []any{"sit"}})

	assert.Equal(t, []string{"add two-tricks f-1", "add two-tricks f-2"}, sink.events)
}

func TestCallNode_AnnotatesErrors(t *testing.T) {
	boom := errors.New("boom")
	net, _ := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "bad", Patterns: []PatternSpec{{
		Template: animalT,
		Constraints: []Constraint{{Slot: "name", Fn: FuncOf("boom", func(*Context) (value.Value, error) {
			return nil, boom
		})}},
	}}})

	f, err := newFact(animalT, "name", "x")
	require.NoError(t, err)
	f.SetID(1)
	err = net.Propagate(token.Assert, f, NewContext(f, nil))
	require.Error(t, err)

	assert.True(t, ruleerr.IsCode(err, ruleerr.CodeLHS))
	assert.ErrorIs(t, err, boom)
	var re *ruleerr.Error
	require.True(t, errors.As(err, &re))
	require.Len(t, re.Trail, 3)
	assert.Contains(t, re.Trail[0], "node 2")
	assert.Contains(t, re.Trail[1], "class animal")
	assert.Contains(t, re.Trail[2], "root")
}

func TestCallNode_RecoversPanics(t *testing.T) {
	net, _ := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "panicky", Patterns: []PatternSpec{{
		Template: animalT,
		Constraints: []Constraint{{Slot: "name", Fn: FuncOf("panic", func(*Context) (value.Value, error) {
			panic("kaboom")
		})}},
	}}})

	f, err := newFact(animalT, "name", "x")
	require.NoError(t, err)
	err = net.Propagate(token.Assert, f, NewContext(f, nil))

	require.Error(t, err)
	assert.True(t, ruleerr.IsCode(err, ruleerr.CodeLHS))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestCallNode_ControlSignalsPassThrough(t *testing.T) {
	net, _ := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "halts", Patterns: []PatternSpec{{
		Template: animalT,
		Constraints: []Constraint{{Slot: "name", Fn: FuncOf("halt", func(*Context) (value.Value, error) {
			return nil, ruleerr.ErrHalt
		})}},
	}}})

	f, err := newFact(animalT, "name", "x")
	require.NoError(t, err)
	err = net.Propagate(token.Assert, f, NewContext(f, nil))

	assert.ErrorIs(t, err, ruleerr.ErrHalt)
	assert.False(t, ruleerr.IsCode(err, ruleerr.CodeLHS))
}

func TestRemoveRule_PrunesUnsharedNodes(t *testing.T) {
	net, _ := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "everyone", Patterns: []PatternSpec{{Template: personT}}})
	mustBuild(t, b, RuleSpec{Name: "bob", Patterns: []PatternSpec{{
		Template:    personT,
		Constraints: []Constraint{{Slot: "name", Value: value.Symbol("bob")}},
	}}})
	require.Equal(t, 5, net.NodeCount())

	_, err := net.RemoveRule("bob")
	require.NoError(t, err)
	assert.Equal(t, 3, net.NodeCount())
	assert.Equal(t, []string{"everyone"}, net.RuleNames())

	_, err = net.RemoveRule("everyone")
	require.NoError(t, err)
	assert.Equal(t, 1, net.NodeCount())

	_, err = net.RemoveRule("everyone")
	assert.True(t, ruleerr.IsCode(err, ruleerr.CodeNoSuchRule))

	again := net.AddClassNode("person")
	assert.Equal(t, NodeID(5), again)
}

func TestAddSuccessor_Validation(t *testing.T) {
	net, _ := newTestNetwork()
	class := net.AddClassNode("animal")
	filter := net.AddFilterNode(LengthTest{Slot: 0, N: 1})

	assert.Error(t, net.AddSuccessor(class, filter, Right))
	assert.Error(t, net.AddSuccessor(class, RootID, Left))
	assert.Error(t, net.AddSuccessor(class, NodeID(99), Left))
	assert.Error(t, net.RemoveSuccessor(class, filter))
}

func TestListNodes_Golden(t *testing.T) {
	net, _ := newTestNetwork()
	b := &Builder{Net: net}
	mustBuild(t, b, RuleSpec{Name: "four-legged-dog", Patterns: []PatternSpec{
		{
			Template: dogT,
			Constraints: []Constraint{
				{Slot: "legs", Value: value.Int(4)},
				{Slot: "name", Var: "n"},
			},
		},
		{
			Template:    ownerT,
			Constraints: []Constraint{{Slot: "pet", Var: "n"}},
		},
	}})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "list_nodes", []byte(net.ListNodes()))

	net.GrowOld()
	listing := net.ListNodes()
	assert.Contains(t, listing, "4 join [0[0] eq [0]] index 0 (old) -> 5L\n")
	assert.Contains(t, listing, "5 terminal four-legged-dog (old)\n")
	assert.Contains(t, listing, "1 class dog -> 2L\n")
}
