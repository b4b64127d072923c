package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
)

func TestNewFactEvent_CanonicalSlots(t *testing.T) {
	f := createTestFact(t, 3, "bob", "admin", "ops")

	ev, err := NewFactEvent("run-1", 7, OpAssert, f)
	require.NoError(t, err)

	assert.Equal(t, FactEvent{
		RunID:  "run-1",
		Seq:    7,
		Op:     OpAssert,
		FactID: 3,
		Type:   "person",
		Slots:  `{"name":"bob","tags":["admin","ops"]}`,
	}, ev)
}

func TestNewFiring_FactIDs(t *testing.T) {
	tok := token.New(createTestFact(t, 1, "a"), 1).Extend(createTestFact(t, 4, "b"), 2)
	f := NewFiring("run-1", 9, "pair", 10, tok)
	assert.Equal(t, []int64{1, 4}, f.Facts)
	assert.Equal(t, 10, f.Salience)
}

func TestBeginRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", Seq: 0, Label: "first"}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", Seq: 5, Label: "again"}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Run{ID: "run-1", Seq: 0, Label: "first"}, run)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestReadRuns_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, s.BeginRun(ctx, Run{ID: id}))
	}

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "a", runs[0].ID)
	assert.Equal(t, "c", runs[2].ID)
}

func TestWriteFactEvent_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	ev, err := NewFactEvent("ghost", 1, OpAssert, createTestFact(t, 1, "a"))
	require.NoError(t, err)
	assert.Error(t, s.WriteFactEvent(context.Background(), ev))
}

func TestJournal_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", Label: "demo"}))

	bob := createTestFact(t, 1, "bob")
	ann := createTestFact(t, 2, "ann", "ops")
	writeEvent(t, s, 3, OpRetract, bob)
	writeEvent(t, s, 1, OpAssert, bob)
	writeEvent(t, s, 2, OpAssert, ann)
	require.NoError(t, s.WriteFiring(ctx, Firing{RunID: "run-1", Seq: 2, Rule: "b", Facts: []int64{2}}))
	require.NoError(t, s.WriteFiring(ctx, Firing{RunID: "run-1", Seq: 1, Rule: "a", Salience: 5, Facts: []int64{1, 2}}))

	events, err := s.ReadFactEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{OpAssert, OpAssert, OpRetract}, []string{events[0].Op, events[1].Op, events[2].Op})
	assert.Equal(t, int64(2), events[1].FactID)

	firings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []Firing{
		{RunID: "run-1", Seq: 1, Rule: "a", Salience: 5, Facts: []int64{1, 2}},
		{RunID: "run-1", Seq: 2, Rule: "b", Facts: []int64{2}},
	}, firings)
}

func TestReadFirings_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	firings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.NotNil(t, firings)
	assert.Empty(t, firings)

	events, err := s.ReadFactEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestReplayFacts_FoldsEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))

	bob := createTestFact(t, 1, "bob")
	ann := createTestFact(t, 2, "ann")
	cy := createTestFact(t, 3, "cy")
	writeEvent(t, s, 1, OpAssert, cy)
	writeEvent(t, s, 2, OpAssert, bob)
	writeEvent(t, s, 3, OpAssert, ann)
	writeEvent(t, s, 4, OpRetract, ann)
	writeEvent(t, s, 5, OpModify, createTestFact(t, 1, "robert", "admin"))

	live, err := s.ReplayFacts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []LiveFact{
		{ID: 1, Type: "person", Slots: `{"name":"robert","tags":["admin"]}`},
		{ID: 3, Type: "person", Slots: `{"name":"cy","tags":[]}`},
	}, live)
}

func TestReplayFacts_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReplayFacts(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReplayFacts_DeterministicAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1"}))
	writeEvent(t, s, 1, OpAssert, createTestFact(t, 1, "bob"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	live, err := s.ReplayFacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, int64(1), live[0].ID)
}

func writeEvent(t *testing.T, s *Store, seq int64, op string, f *fact.Fact) {
	t.Helper()
	ev, err := NewFactEvent("run-1", seq, op, f)
	require.NoError(t, err)
	require.NoError(t, s.WriteFactEvent(context.Background(), ev))
}
