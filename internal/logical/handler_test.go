package logical

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/token"
)

var cellT = fact.MustTemplate("cell", nil, fact.Slot{Name: "row"}, fact.Slot{Name: "col"})

func newFact(t *testing.T, id int64) *fact.Fact {
	t.Helper()
	f, err := fact.New(cellT, nil)
	require.NoError(t, err)
	f.SetID(id)
	return f
}

type dropCall struct {
	fact int64
	tok  string
}

type recordingRegistry struct {
	mu    sync.Mutex
	calls []dropCall
	err   error
}

func (r *recordingRegistry) DropSupport(f *fact.Fact, tok *token.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dropCall{fact: f.ID(), tok: tok.String()})
	return r.err
}

// slotOracle treats a change as relevant when it touches slot.
type slotOracle struct{ slot int }

func (o slotOracle) IsRelevantChange(_ int, _ *token.Token, ctx *rete.Context) bool {
	return ctx.SlotChanged(o.slot)
}

func TestHandler_CascadeDropsEachFactOnce(t *testing.T) {
	reg := &recordingRegistry{}
	h := NewHandler(nil, reg, nil)
	support := newFact(t, 1)
	tok := token.New(support, 1)
	f1, f2 := newFact(t, 10), newFact(t, 11)

	h.RecordSupport(f1, tok)
	h.RecordSupport(f2, tok)
	require.Equal(t, 1, h.Len())

	require.NoError(t, h.TokenMatched(token.Remove, tok, rete.NewContext(support, nil)))
	assert.Equal(t, []dropCall{{10, "f-1"}, {11, "f-1"}}, reg.calls)
	assert.Zero(t, h.Len())
	assert.Nil(t, h.Supported(tok))

	require.NoError(t, h.TokenMatched(token.Remove, tok, rete.NewContext(support, nil)))
	assert.Len(t, reg.calls, 2)
}

func TestHandler_CascadingTags(t *testing.T) {
	for _, tag := range []token.Tag{token.Assert, token.Remove} {
		t.Run(tag.String(), func(t *testing.T) {
			reg := &recordingRegistry{}
			h := NewHandler(nil, reg, nil)
			tok := token.New(newFact(t, 1), 1)
			h.RecordSupport(newFact(t, 2), tok)

			require.NoError(t, h.TokenMatched(tag, tok, nil))
			assert.Len(t, reg.calls, 1)
			assert.Zero(t, h.Len())
		})
	}
}

func TestHandler_UpdateKeepsSupport(t *testing.T) {
	reg := &recordingRegistry{}
	h := NewHandler(nil, reg, nil)
	tok := token.New(newFact(t, 1), 1)
	h.RecordSupport(newFact(t, 2), tok)

	require.NoError(t, h.TokenMatched(token.Update, tok, nil))
	assert.Empty(t, reg.calls)
	assert.Equal(t, 1, h.Len())
}

func TestHandler_ClearDropsEverythingSilently(t *testing.T) {
	reg := &recordingRegistry{}
	h := NewHandler(nil, reg, nil)
	h.RecordSupport(newFact(t, 2), token.New(newFact(t, 1), 1))
	h.RecordSupport(newFact(t, 4), token.New(newFact(t, 3), 2))

	require.NoError(t, h.TokenMatched(token.Clear, nil, nil))
	assert.Zero(t, h.Len())
	assert.Empty(t, reg.calls)
}

func TestHandler_ModifyConsultsRelevance(t *testing.T) {
	reg := &recordingRegistry{}
	h := NewHandler(slotOracle{slot: 1}, reg, nil)
	support := newFact(t, 1)
	tok := token.New(support, 1)
	h.RecordSupport(newFact(t, 2), tok)

	rowOnly := rete.NewContext(support, nil).WithChangedSlots([]int{0})
	require.NoError(t, h.TokenMatched(token.ModifyRemove, tok, rowOnly))
	require.NoError(t, h.TokenMatched(token.ModifyAdd, tok, rowOnly))
	assert.Empty(t, reg.calls)
	assert.Equal(t, 1, h.Len())

	colChanged := rete.NewContext(support, nil).WithChangedSlots([]int{1})
	require.NoError(t, h.TokenMatched(token.ModifyRemove, tok, colChanged))
	assert.Len(t, reg.calls, 1)
	assert.Zero(t, h.Len())
}

func TestHandler_RegistryErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	reg := &recordingRegistry{err: boom}
	h := NewHandler(nil, reg, nil)
	tok := token.New(newFact(t, 1), 1)
	h.RecordSupport(newFact(t, 2), tok)

	assert.ErrorIs(t, h.TokenMatched(token.Remove, tok, nil), boom)
	assert.Zero(t, h.Len())
}

func TestHandler_ConcurrentRecordSupport(t *testing.T) {
	h := NewHandler(nil, &recordingRegistry{}, nil)
	tok := token.New(newFact(t, 1), 1)

	facts := make([]*fact.Fact, 20)
	for i := range facts {
		facts[i] = newFact(t, int64(100+i))
	}

	var wg sync.WaitGroup
	for _, f := range facts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.RecordSupport(f, tok)
		}()
	}
	wg.Wait()
	assert.Len(t, h.Supported(tok), 20)
}

// positionOracle reads slot i of the fact at token position i.
type positionOracle struct{}

func (positionOracle) IsRelevantChange(i int, _ *token.Token, ctx *rete.Context) bool {
	return ctx.SlotChanged(i)
}

func TestHandler_ModifyChecksEveryPositionOfFact(t *testing.T) {
	reg := &recordingRegistry{}
	h := NewHandler(positionOracle{}, reg, nil)
	support := newFact(t, 1)
	tok := token.New(support, 1).Extend(support, 2)
	h.RecordSupport(newFact(t, 2), tok)

	colChanged := rete.NewContext(support, nil).WithChangedSlots([]int{1})
	require.NoError(t, h.TokenMatched(token.ModifyRemove, tok, colChanged))
	assert.Equal(t, []dropCall{{2, "f-1,f-1"}}, reg.calls)
	assert.Zero(t, h.Len())
}
