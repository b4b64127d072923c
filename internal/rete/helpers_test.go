package rete

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

var (
	animalT = fact.MustTemplate("animal", nil, fact.Slot{Name: "name"}, fact.Slot{Name: "legs"})
	dogT    = fact.MustTemplate("dog", animalT, fact.Slot{Name: "tricks", Multi: true})
	ownerT  = fact.MustTemplate("owner", nil, fact.Slot{Name: "pet"})
	personT = fact.MustTemplate("person", nil, fact.Slot{Name: "name"})
	petT    = fact.MustTemplate("pet", nil, fact.Slot{Name: "name"}, fact.Slot{Name: "owner"})
)

// recordingSink records activation traffic as "add rule token" lines.
type recordingSink struct {
	events []string
	tokens []*token.Token
}

func (s *recordingSink) AddActivation(rule *Rule, tok *token.Token) error {
	s.events = append(s.events, fmt.Sprintf("add %s %s", rule.Name, tok))
	s.tokens = append(s.tokens, tok)
	return nil
}

func (s *recordingSink) RemoveActivation(rule *Rule, tok *token.Token) error {
	s.events = append(s.events, fmt.Sprintf("remove %s %s", rule.Name, tok))
	return nil
}

func (s *recordingSink) reset() { s.events = nil; s.tokens = nil }

type recordingListener struct {
	tags []token.Tag
}

func (l *recordingListener) TokenMatched(tag token.Tag, _ *token.Token, _ *Context) error {
	l.tags = append(l.tags, tag)
	return nil
}

// wm is a minimal working memory for driving a network in tests.
type wm struct {
	t      *testing.T
	net    *Network
	nextID int64
}

func newWM(t *testing.T, net *Network) *wm {
	return &wm{t: t, net: net}
}

func (w *wm) assert(tmpl *fact.Template, slots map[string]any) *fact.Fact {
	w.t.Helper()
	vals := make(map[string]value.Value, len(slots))
	for k, v := range slots {
		cv, err := value.FromGo(v)
		require.NoError(w.t, err)
		vals[k] = cv
	}
	f, err := fact.New(tmpl, vals)
	require.NoError(w.t, err)
	w.nextID++
	f.SetID(w.nextID)
	require.NoError(w.t, w.net.Propagate(token.Assert, f, NewContext(f, nil)))
	return f
}

func (w *wm) retract(f *fact.Fact) {
	w.t.Helper()
	require.NoError(w.t, w.net.Propagate(token.Remove, f, NewContext(f, nil)))
	f.SetID(fact.DeadID)
}

func newFact(tmpl *fact.Template, slot string, v any) (*fact.Fact, error) {
	cv, err := value.FromGo(v)
	if err != nil {
		return nil, err
	}
	return fact.New(tmpl, map[string]value.Value{slot: cv})
}

func newTestNetwork(opts ...Option) (*Network, *recordingSink) {
	sink := &recordingSink{}
	return NewNetwork(append([]Option{WithSink(sink)}, opts...)...), sink
}

func mustBuild(t *testing.T, b *Builder, spec RuleSpec) *Rule {
	t.Helper()
	r, err := b.Build(spec)
	require.NoError(t, err)
	return r
}
