package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/value"
)

var thing = fact.MustTemplate("thing", nil, fact.Slot{Name: "n"})

func newFact(t *testing.T, id int64) *fact.Fact {
	t.Helper()
	f, err := fact.New(thing, map[string]value.Value{"n": value.Int(id)})
	require.NoError(t, err)
	f.SetID(id)
	return f
}

func TestTag_ContractValues(t *testing.T) {
	assert.Equal(t, 0, int(Assert))
	assert.Equal(t, 1, int(Remove))
	assert.Equal(t, 2, int(Update))
	assert.Equal(t, 3, int(Clear))
	assert.Equal(t, 4, int(ModifyAdd))
	assert.Equal(t, 5, int(ModifyRemove))
	assert.Len(t, Tags, 6)
	assert.Equal(t, "MODIFY_REMOVE", ModifyRemove.String())
}

func TestToken_ExtendDoesNotMutate(t *testing.T) {
	a, b := newFact(t, 1), newFact(t, 2)

	t1 := New(a, 10)
	t2 := t1.Extend(b, 15)

	assert.Equal(t, 1, t1.Size())
	assert.Equal(t, 2, t2.Size())
	assert.Same(t, b, t2.TopFact())
	assert.Same(t, a, t1.TopFact())
	assert.Equal(t, int64(15), t2.Time())
	assert.Equal(t, int64(25), t2.TotalTime())
}

func TestToken_Join(t *testing.T) {
	a, b := newFact(t, 1), newFact(t, 2)

	joined := New(a, 3).Join(New(b, 4), 5)

	assert.Equal(t, 2, joined.Size())
	assert.Equal(t, int64(12), joined.TotalTime())
	assert.Equal(t, 1, joined.IndexOf(b))
	assert.Equal(t, -1, joined.IndexOf(newFact(t, 9)))
}

func TestToken_StructuralEquality(t *testing.T) {
	a, b := newFact(t, 1), newFact(t, 2)

	x := New(a, 1).Extend(b, 2)
	y := New(a, 7).Extend(b, 9)
	z := New(b, 1).Extend(a, 2)

	assert.True(t, x.Equal(y), "times do not take part in equality")
	assert.Equal(t, x.Key(), y.Key())
	assert.False(t, x.Equal(z), "order matters")
	assert.NotEqual(t, x.Key(), z.Key())
}

func TestToken_AccumulateEquality(t *testing.T) {
	a := newFact(t, 1)

	x := New(a, 1).Extend(fact.NewAccumulate(value.Int(1)), 2)
	y := New(a, 1).Extend(fact.NewAccumulate(value.Int(99)), 2)

	assert.True(t, x.Equal(y))
	assert.Equal(t, x.Key(), y.Key())
}

func TestToken_Prepared(t *testing.T) {
	tok := New(newFact(t, 1), 1)
	assert.False(t, tok.Prepared())
	tok.MarkPrepared()
	assert.True(t, tok.Prepared())
	assert.False(t, tok.Extend(newFact(t, 2), 2).Prepared(), "extensions start unprepared")
}

func TestList_SwapRemove(t *testing.T) {
	a := New(newFact(t, 1), 1)
	b := New(newFact(t, 2), 2)
	c := New(newFact(t, 3), 3)

	l := NewList(1)
	l.Add(a)
	l.Add(b)
	l.Add(c)

	removed := l.RemoveAt(1)
	assert.Same(t, b, removed)
	require.Equal(t, 2, l.Len())

	got := []*Token{l.At(0), l.At(1)}
	assert.ElementsMatch(t, []*Token{a, c}, got)
}

func TestList_RemoveByEquality(t *testing.T) {
	f := newFact(t, 1)
	l := NewList(0)
	l.Add(New(f, 1))

	assert.Nil(t, l.Remove(New(newFact(t, 2), 1)))
	assert.NotNil(t, l.Remove(New(f, 99)))
	assert.Equal(t, 0, l.Len())
}

func TestList_SnapshotAndClear(t *testing.T) {
	l := NewList(0)
	l.Add(New(newFact(t, 1), 1))
	l.Add(New(newFact(t, 2), 2))

	snap := l.Snapshot()
	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Len(t, snap, 2)
}
