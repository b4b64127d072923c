package rete

import (
	"fmt"
	"strings"

	"github.com/roach88/rete/internal/compare"
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
	"github.com/roach88/rete/internal/value"
)

// JoinTest compares a slot of fact LeftIndex in the left token with a slot
// of the right fact. A negative Sub selects the whole slot. Both slots are
// always resolved; fact variables never reach a join test.
type JoinTest struct {
	LeftIndex int
	LeftSlot  int
	LeftSub   int
	RightSlot int
	RightSub  int
	Op        TestOp
	Operator  compare.Operator
}

func (jt JoinTest) leftValue(tok *token.Token) (value.Value, error) {
	if jt.LeftIndex < 0 || jt.LeftIndex >= tok.Size() {
		return nil, fmt.Errorf("join test refers to token position %d of %d", jt.LeftIndex, tok.Size())
	}
	return tok.Fact(jt.LeftIndex).GetSub(jt.LeftSlot, jt.LeftSub)
}

func (jt JoinTest) rightValue(f *fact.Fact) (value.Value, error) {
	return f.GetSub(jt.RightSlot, jt.RightSub)
}

func (jt JoinTest) eval(left *token.Token, right *fact.Fact) (bool, error) {
	lv, err := jt.leftValue(left)
	if err != nil {
		return false, err
	}
	rv, err := jt.rightValue(right)
	if err != nil {
		return false, err
	}
	switch jt.Op {
	case OpEq:
		return value.Equal(lv, rv), nil
	case OpNeq:
		return !value.Equal(lv, rv), nil
	case OpCompare:
		return compare.Evaluate(jt.Operator, rv, lv)
	}
	return false, fmt.Errorf("unknown join test op %d", jt.Op)
}

func (jt JoinTest) describe() string {
	return fmt.Sprintf("%d%s %s %s", jt.LeftIndex, slotRef(jt.LeftSlot, jt.LeftSub), opName(jt.Op, jt.Operator), slotRef(jt.RightSlot, jt.RightSub))
}

// MemoryInfo records which join test, if any, keys a join's memories.
// It is computed once when the join is built.
type MemoryInfo struct {
	test int
	jt   JoinTest
}

// NewMemoryInfo selects the index test: the first equality test whose two
// sides resolve to concrete slots, preferring whole-slot tests over
// sub-slot tests. With no eligible test the join scans linearly.
func NewMemoryInfo(tests []JoinTest) MemoryInfo {
	eligible := func(jt JoinTest) bool {
		return jt.Op == OpEq && jt.LeftIndex >= 0 && jt.LeftSlot >= 0 && jt.RightSlot >= 0
	}
	for i, jt := range tests {
		if eligible(jt) && jt.LeftSub < 0 && jt.RightSub < 0 {
			return MemoryInfo{test: i, jt: jt}
		}
	}
	for i, jt := range tests {
		if eligible(jt) {
			return MemoryInfo{test: i, jt: jt}
		}
	}
	return MemoryInfo{test: -1}
}

// Indexed reports whether the memories are hashed.
func (m MemoryInfo) Indexed() bool { return m.test >= 0 }

// TestIndex returns the position of the index test, or -1.
func (m MemoryInfo) TestIndex() int { return m.test }

func (m MemoryInfo) leftKey(tok *token.Token) (string, error) {
	v, err := m.jt.leftValue(tok)
	if err != nil {
		return "", err
	}
	return value.Key(v), nil
}

func (m MemoryInfo) rightKey(tok *token.Token) (string, error) {
	v, err := m.jt.rightValue(tok.TopFact())
	if err != nil {
		return "", err
	}
	return value.Key(v), nil
}

// memory is one side of a join: a single TokenList, or TokenLists bucketed
// by index key.
type memory struct {
	key     func(*token.Token) (string, error)
	all     *token.List
	buckets map[string]*token.List
	size    int
}

func newMemory(key func(*token.Token) (string, error)) *memory {
	m := &memory{key: key}
	if key == nil {
		m.all = token.NewList(8)
	} else {
		m.buckets = make(map[string]*token.List)
	}
	return m
}

func (m *memory) listFor(tok *token.Token, create bool) (*token.List, error) {
	if m.key == nil {
		return m.all, nil
	}
	k, err := m.key(tok)
	if err != nil {
		return nil, err
	}
	return m.bucket(k, create), nil
}

func (m *memory) bucket(k string, create bool) *token.List {
	l, ok := m.buckets[k]
	if !ok && create {
		l = token.NewList(2)
		m.buckets[k] = l
	}
	return l
}

func (m *memory) add(tok *token.Token) error {
	l, err := m.listFor(tok, true)
	if err != nil {
		return err
	}
	l.Add(tok)
	m.size++
	return nil
}

// remove deletes the stored token equal to tok and returns it, or nil.
func (m *memory) remove(tok *token.Token) (*token.Token, error) {
	l, err := m.listFor(tok, false)
	if err != nil || l == nil {
		return nil, err
	}
	stored := l.Remove(tok)
	if stored == nil {
		return nil, nil
	}
	m.size--
	if m.key != nil && l.Len() == 0 {
		k, _ := m.key(tok)
		delete(m.buckets, k)
	}
	return stored, nil
}

// candidates returns a snapshot of the tokens that may match under key k.
// An unindexed memory returns everything.
func (m *memory) candidates(k string) []*token.Token {
	if m.key == nil {
		return m.all.Snapshot()
	}
	if l := m.bucket(k, false); l != nil {
		return l.Snapshot()
	}
	return nil
}

func (m *memory) clear() {
	if m.key == nil {
		m.all.Clear()
	} else {
		clear(m.buckets)
	}
	m.size = 0
}

type joinState struct {
	tests   []JoinTest
	negated bool
	info    MemoryInfo
	left    *memory
	right   *memory

	// counts holds, for a negated join, the number of right matches of
	// each stored left token.
	counts map[string]int
}

func newJoinState(tests []JoinTest, negated bool) *joinState {
	j := &joinState{tests: tests, negated: negated, info: NewMemoryInfo(tests)}
	if j.info.Indexed() {
		j.left = newMemory(j.info.leftKey)
		j.right = newMemory(j.info.rightKey)
	} else {
		j.left = newMemory(nil)
		j.right = newMemory(nil)
	}
	if negated {
		j.counts = make(map[string]int)
	}
	return j
}

func (j *joinState) describe() string {
	var b strings.Builder
	if j.negated {
		b.WriteString("not ")
	}
	b.WriteString("join")
	if len(j.tests) > 0 {
		parts := make([]string, len(j.tests))
		for i, jt := range j.tests {
			parts[i] = jt.describe()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	if j.info.Indexed() {
		fmt.Fprintf(&b, " index %d", j.info.TestIndex())
	}
	return b.String()
}

func (j *joinState) matches(left *token.Token, right *fact.Fact) (bool, error) {
	for _, jt := range j.tests {
		ok, err := jt.eval(left, right)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// rightMatches returns the right tokens matching a left token.
func (j *joinState) rightMatches(left *token.Token) ([]*token.Token, error) {
	var k string
	if j.info.Indexed() {
		var err error
		if k, err = j.info.leftKey(left); err != nil {
			return nil, err
		}
	}
	var out []*token.Token
	for _, r := range j.right.candidates(k) {
		ok, err := j.matches(left, r.TopFact())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// leftMatches returns the left tokens matching a right token.
func (j *joinState) leftMatches(right *token.Token) ([]*token.Token, error) {
	var k string
	if j.info.Indexed() {
		var err error
		if k, err = j.info.rightKey(right); err != nil {
			return nil, err
		}
	}
	var out []*token.Token
	for _, l := range j.left.candidates(k) {
		ok, err := j.matches(l, right.TopFact())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (n *Network) callJoin(nd *node, side Side, tag token.Tag, tok *token.Token, ctx *Context) error {
	j := nd.join

	if tag == token.Clear {
		if side == Right {
			j.right.clear()
			return nil
		}
		j.left.clear()
		if j.negated {
			clear(j.counts)
		}
		return n.propagate(nd, tag, tok, ctx)
	}

	if tag == token.Update && nd.old {
		// Replay into newer successors: every stored right fact is already
		// joined, so only left traffic produces output and nothing is stored.
		if side == Right {
			return nil
		}
		return n.replayLeft(nd, tok, ctx)
	}

	if side == Left {
		if j.negated {
			return n.negatedLeft(nd, tag, tok, ctx)
		}
		return n.joinLeft(nd, tag, tok, ctx)
	}
	if j.negated {
		return n.negatedRight(nd, tag, tok, ctx)
	}
	return n.joinRight(nd, tag, tok, ctx)
}

func (n *Network) replayLeft(nd *node, tok *token.Token, ctx *Context) error {
	j := nd.join
	rights, err := j.rightMatches(tok)
	if err != nil {
		return err
	}
	if j.negated {
		if len(rights) == 0 {
			return n.propagate(nd, token.Update, tok, ctx)
		}
		return nil
	}
	for _, r := range rights {
		if err := n.propagate(nd, token.Update, tok.Join(r, n.clock.Next()), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) joinLeft(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	j := nd.join
	if tag.IsRemoval() {
		stored, err := j.left.remove(tok)
		if err != nil || stored == nil {
			return err
		}
		tok = stored
	} else if err := j.left.add(tok); err != nil {
		return err
	}

	rights, err := j.rightMatches(tok)
	if err != nil {
		return err
	}
	for _, r := range rights {
		var time int64
		if !tag.IsRemoval() {
			time = n.clock.Next()
		}
		if err := n.propagate(nd, tag, tok.Join(r, time), ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) joinRight(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	j := nd.join
	if tag.IsRemoval() {
		stored, err := j.right.remove(tok)
		if err != nil || stored == nil {
			return err
		}
		tok = stored
	} else if err := j.right.add(tok); err != nil {
		return err
	}

	lefts, err := j.leftMatches(tok)
	if err != nil {
		return err
	}
	for _, l := range lefts {
		var time int64
		if !tag.IsRemoval() {
			time = n.clock.Next()
		}
		if err := n.propagate(nd, tag, l.Join(tok, time), ctx); err != nil {
			return err
		}
	}
	return nil
}

// negatedLeft passes a left token through while no right fact matches it.
func (n *Network) negatedLeft(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	j := nd.join
	if tag.IsRemoval() {
		stored, err := j.left.remove(tok)
		if err != nil || stored == nil {
			return err
		}
		key := stored.Key()
		count := j.counts[key]
		delete(j.counts, key)
		if count == 0 {
			return n.propagate(nd, tag, stored, ctx)
		}
		return nil
	}

	rights, err := j.rightMatches(tok)
	if err != nil {
		return err
	}
	if err := j.left.add(tok); err != nil {
		return err
	}
	j.counts[tok.Key()] = len(rights)
	if len(rights) == 0 {
		return n.propagate(nd, tag, tok, ctx)
	}
	return nil
}

// negatedRight updates match counts. A left token whose count leaves zero
// is withdrawn with REMOVE; one whose count returns to zero is re-asserted
// with ASSERT.
func (n *Network) negatedRight(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	j := nd.join
	removal := tag.IsRemoval()
	if removal {
		stored, err := j.right.remove(tok)
		if err != nil || stored == nil {
			return err
		}
		tok = stored
	} else if err := j.right.add(tok); err != nil {
		return err
	}

	lefts, err := j.leftMatches(tok)
	if err != nil {
		return err
	}
	for _, l := range lefts {
		key := l.Key()
		if removal {
			j.counts[key]--
			if j.counts[key] == 0 {
				if err := n.propagate(nd, token.Assert, l, ctx); err != nil {
					return err
				}
			}
			continue
		}
		j.counts[key]++
		if j.counts[key] == 1 {
			if err := n.propagate(nd, token.Remove, l, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// JoinMemorySizes reports the number of tokens stored on each side of a
// join node. Used for testing and diagnostics.
func (n *Network) JoinMemorySizes(id NodeID) (left, right int, err error) {
	nd, err := n.node(id)
	if err != nil {
		return 0, 0, err
	}
	if nd.kind != KindJoin {
		return 0, 0, fmt.Errorf("node %d is a %s node", id, nd.kind)
	}
	return nd.join.left.size, nd.join.right.size, nil
}

// MemoryInfoOf returns the indexing decision of a join node.
func (n *Network) MemoryInfoOf(id NodeID) (MemoryInfo, error) {
	nd, err := n.node(id)
	if err != nil {
		return MemoryInfo{}, err
	}
	if nd.kind != KindJoin {
		return MemoryInfo{}, fmt.Errorf("node %d is a %s node", id, nd.kind)
	}
	return nd.join.info, nil
}
