package token

import (
	"strings"

	"github.com/roach88/rete/internal/fact"
)

// Token is an ordered sequence of facts forming one partial or complete
// match. The sequence never changes after creation; Extend returns a new
// token.
type Token struct {
	facts     []*fact.Fact
	time      int64
	totalTime int64
	prepared  bool
}

// New creates a one-fact token stamped with time.
func New(f *fact.Fact, time int64) *Token {
	return &Token{facts: []*fact.Fact{f}, time: time, totalTime: time}
}

// Extend returns a new token holding t's facts followed by f. The new
// token's total time adds its own creation time to t's lineage total.
func (t *Token) Extend(f *fact.Fact, time int64) *Token {
	facts := make([]*fact.Fact, len(t.facts)+1)
	copy(facts, t.facts)
	facts[len(t.facts)] = f
	return &Token{facts: facts, time: time, totalTime: t.totalTime + time}
}

// Join returns a new token holding t's facts followed by right's facts.
func (t *Token) Join(right *Token, time int64) *Token {
	facts := make([]*fact.Fact, 0, len(t.facts)+len(right.facts))
	facts = append(facts, t.facts...)
	facts = append(facts, right.facts...)
	return &Token{facts: facts, time: time, totalTime: t.totalTime + right.totalTime + time}
}

// Size returns the number of facts.
func (t *Token) Size() int { return len(t.facts) }

// Fact returns the fact at position i.
func (t *Token) Fact(i int) *fact.Fact { return t.facts[i] }

// Facts returns a copy of the fact sequence.
func (t *Token) Facts() []*fact.Fact {
	out := make([]*fact.Fact, len(t.facts))
	copy(out, t.facts)
	return out
}

// TopFact returns the most recently added fact.
func (t *Token) TopFact() *fact.Fact { return t.facts[len(t.facts)-1] }

// IndexOf returns the position of f in the token, or -1.
func (t *Token) IndexOf(f *fact.Fact) int {
	for i, g := range t.facts {
		if g == f {
			return i
		}
	}
	return -1
}

// Time returns the creation sequence number.
func (t *Token) Time() int64 { return t.time }

// TotalTime returns the sum of creation times along the token's lineage.
func (t *Token) TotalTime() int64 { return t.totalTime }

// Prepared reports whether a dynamic test has been evaluated against this
// token. The flag is informational; nothing in the network consults it.
func (t *Token) Prepared() bool { return t.prepared }

// MarkPrepared records that a dynamic test was evaluated.
func (t *Token) MarkPrepared() { t.prepared = true }

// Equal reports whether both tokens hold the same fact sequence.
func (t *Token) Equal(o *Token) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || len(t.facts) != len(o.facts) {
		return false
	}
	for i := range t.facts {
		if !fact.Same(t.facts[i], o.facts[i]) {
			return false
		}
	}
	return true
}

// Key returns a string consistent with Equal, usable as a map key.
func (t *Token) Key() string {
	var b strings.Builder
	for i, f := range t.facts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.IdentityKey())
	}
	return b.String()
}

// String renders the token as its fact ids.
func (t *Token) String() string {
	var b strings.Builder
	for i, f := range t.facts {
		if i > 0 {
			b.WriteByte(',')
		}
		if f.Template().IsAccumulate() {
			b.WriteString("acc")
			continue
		}
		b.WriteString("f-")
		b.WriteString(strings.TrimPrefix(f.IdentityKey(), "f"))
	}
	return b.String()
}
