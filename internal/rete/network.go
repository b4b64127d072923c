package rete

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/ruleerr"
	"github.com/roach88/rete/internal/token"
)

// NodeID is a stable handle into the network's node arena.
type NodeID int

// RootID is the handle of the root dispatcher.
const RootID NodeID = 0

// Side names the input of a node an edge feeds.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "R"
	}
	return "L"
}

// NodeKind distinguishes the node variants.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindFilter
	KindJoin
	KindTerminal
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindFilter:
		return "filter"
	case KindJoin:
		return "join"
	case KindTerminal:
		return "terminal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type edge struct {
	node NodeID
	side Side
}

type node struct {
	id      NodeID
	kind    NodeKind
	pred    Predicate
	join    *joinState
	term    *terminalState
	succ    []edge
	parents []edge
	old     bool
}

func (nd *node) stateful() bool {
	switch nd.kind {
	case KindJoin, KindTerminal:
		return true
	case KindFilter:
		return nd.pred.Stateful()
	}
	return false
}

func (nd *node) describe() string {
	switch nd.kind {
	case KindFilter:
		return nd.pred.Describe()
	case KindJoin:
		return nd.join.describe()
	case KindTerminal:
		return "terminal " + nd.term.rule.Name
	}
	return nd.kind.String()
}

// Clock issues token creation times.
type Clock interface {
	Next() int64
}

// ActivationSink receives complete matches from terminal nodes.
type ActivationSink interface {
	AddActivation(rule *Rule, tok *token.Token) error
	RemoveActivation(rule *Rule, tok *token.Token) error
}

// TokenListener observes every token event reaching a terminal. The
// logical dependency handler implements it.
type TokenListener interface {
	TokenMatched(tag token.Tag, tok *token.Token, ctx *Context) error
}

// EventKind names debug events.
type EventKind int

const (
	// EventPatternMatched is emitted when a filter passes a token, and for
	// every CLEAR reaching a filter.
	EventPatternMatched EventKind = iota
)

// Event is a debug notification from the network.
type Event struct {
	Kind  EventKind
	Node  NodeID
	Tag   token.Tag
	Token *token.Token
}

// Network is the node arena plus the root dispatcher.
type Network struct {
	nodes    []*node
	classes  map[string]NodeID
	rules    map[string]NodeID
	clock    Clock
	sink     ActivationSink
	listener func(Event)
	logger   *slog.Logger
}

// Option configures a Network.
type Option func(*Network)

// WithClock sets the clock stamping new tokens.
func WithClock(c Clock) Option {
	return func(n *Network) { n.clock = c }
}

// WithSink sets the activation sink fed by terminal nodes.
func WithSink(s ActivationSink) Option {
	return func(n *Network) { n.sink = s }
}

// WithListener registers a debug event listener.
func WithListener(fn func(Event)) Option {
	return func(n *Network) { n.listener = fn }
}

// WithLogger sets the network's logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.logger = l }
}

// NewNetwork creates a network holding only the root dispatcher.
func NewNetwork(opts ...Option) *Network {
	n := &Network{
		nodes:   []*node{{id: RootID, kind: KindRoot}},
		classes: make(map[string]NodeID),
		rules:   make(map[string]NodeID),
		clock:   &counter{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type counter struct{ n int64 }

func (c *counter) Next() int64 { c.n++; return c.n }

func (n *Network) add(nd *node) NodeID {
	nd.id = NodeID(len(n.nodes))
	n.nodes = append(n.nodes, nd)
	return nd.id
}

func (n *Network) node(id NodeID) (*node, error) {
	if id < 0 || int(id) >= len(n.nodes) || n.nodes[id] == nil {
		return nil, fmt.Errorf("no such node %d", id)
	}
	return n.nodes[id], nil
}

// AddClassNode returns the shared class-test node for typeName, creating
// and linking it under the root on first use.
func (n *Network) AddClassNode(typeName string) NodeID {
	if id, ok := n.classes[typeName]; ok {
		return id
	}
	id := n.add(&node{kind: KindFilter, pred: ClassTest{Type: typeName}})
	n.classes[typeName] = id
	n.link(RootID, id, Left)
	return id
}

// AddFilterNode adds an unlinked filter node.
func (n *Network) AddFilterNode(p Predicate) NodeID {
	return n.add(&node{kind: KindFilter, pred: p})
}

// AddJoinNode adds an unlinked join node. Its memory indexing is decided
// here and never changes.
func (n *Network) AddJoinNode(tests []JoinTest, negated bool) NodeID {
	return n.add(&node{kind: KindJoin, join: newJoinState(tests, negated)})
}

// AddTerminalNode adds an unlinked terminal node for rule. logical may be
// nil.
func (n *Network) AddTerminalNode(rule *Rule, logical TokenListener) (NodeID, error) {
	if _, dup := n.rules[rule.Name]; dup {
		return 0, ruleerr.New(ruleerr.CodeDuplicateRule, "defrule",
			fmt.Sprintf("rule %s already exists", rule.Name), nil)
	}
	id := n.add(&node{kind: KindTerminal, term: &terminalState{rule: rule, logical: logical}})
	n.rules[rule.Name] = id
	return id, nil
}

// AddSuccessor links child under parent on the given input side.
func (n *Network) AddSuccessor(parent, child NodeID, side Side) error {
	p, err := n.node(parent)
	if err != nil {
		return err
	}
	c, err := n.node(child)
	if err != nil {
		return err
	}
	if p.kind == KindTerminal {
		return fmt.Errorf("terminal node %d cannot have successors", parent)
	}
	if c.kind == KindRoot {
		return fmt.Errorf("root cannot be a successor")
	}
	if side == Right && c.kind != KindJoin {
		return fmt.Errorf("only join nodes have a right input")
	}
	n.link(parent, child, side)
	return nil
}

func (n *Network) link(parent, child NodeID, side Side) {
	n.nodes[parent].succ = append(n.nodes[parent].succ, edge{node: child, side: side})
	n.nodes[child].parents = append(n.nodes[child].parents, edge{node: parent, side: side})
}

// RemoveSuccessor unlinks child from parent.
func (n *Network) RemoveSuccessor(parent, child NodeID) error {
	p, err := n.node(parent)
	if err != nil {
		return err
	}
	c, err := n.node(child)
	if err != nil {
		return err
	}
	before := len(p.succ)
	p.succ = slices.DeleteFunc(p.succ, func(e edge) bool { return e.node == child })
	if len(p.succ) == before {
		return fmt.Errorf("node %d is not a successor of %d", child, parent)
	}
	c.parents = slices.DeleteFunc(c.parents, func(e edge) bool { return e.node == parent })
	return nil
}

// RemoveRule grows the rule's terminal old, unlinks it, and prunes every
// node left without successors. Shared class nodes survive while another
// rule uses them.
func (n *Network) RemoveRule(name string) (*Rule, error) {
	id, ok := n.rules[name]
	if !ok {
		return nil, ruleerr.New(ruleerr.CodeNoSuchRule, "undefrule",
			fmt.Sprintf("no rule named %s", name), nil)
	}
	rule := n.nodes[id].term.rule
	n.nodes[id].old = true
	delete(n.rules, name)
	n.prune(id)
	n.logger.Debug("rule removed from network", "rule", name, "nodes", n.NodeCount())
	return rule, nil
}

func (n *Network) prune(id NodeID) {
	nd := n.nodes[id]
	if id == RootID || nd == nil || len(nd.succ) > 0 {
		return
	}
	if nd.stateful() {
		nd.old = true
	}
	parents := slices.Clone(nd.parents)
	for _, p := range parents {
		_ = n.RemoveSuccessor(p.node, id)
	}
	if nd.kind == KindFilter {
		if c, ok := nd.pred.(ClassTest); ok && n.classes[c.Type] == id {
			delete(n.classes, c.Type)
		}
	}
	n.nodes[id] = nil
	for _, p := range parents {
		n.prune(p.node)
	}
}

// Rule returns the rule with the given name.
func (n *Network) Rule(name string) (*Rule, bool) {
	id, ok := n.rules[name]
	if !ok {
		return nil, false
	}
	return n.nodes[id].term.rule, true
}

// RuleNames returns the names of all rules in the network, sorted.
func (n *Network) RuleNames() []string {
	names := make([]string, 0, len(n.rules))
	for name := range n.rules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NodeCount returns the number of live nodes, the root included.
func (n *Network) NodeCount() int {
	count := 0
	for _, nd := range n.nodes {
		if nd != nil {
			count++
		}
	}
	return count
}

// GrowOld marks every stateful node old. Stateless nodes are unaffected.
func (n *Network) GrowOld() {
	for _, nd := range n.nodes {
		if nd != nil && nd.stateful() {
			nd.old = true
		}
	}
}

// Propagate sends a fact change into the root dispatcher.
func (n *Network) Propagate(tag token.Tag, f *fact.Fact, ctx *Context) error {
	return n.CallNode(RootID, Left, tag, token.New(f, n.clock.Next()), ctx)
}

// Clear sends CLEAR through the whole network, flushing every memory.
func (n *Network) Clear(ctx *Context) error {
	return n.CallNode(RootID, Left, token.Clear, nil, ctx)
}

// CallNode delivers one token event to a node's input.
func (n *Network) CallNode(id NodeID, side Side, tag token.Tag, tok *token.Token, ctx *Context) (err error) {
	nd, err := n.node(id)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = ruleerr.FromPanic(r, n.trailEntry(nd, tok))
		}
	}()

	switch nd.kind {
	case KindRoot:
		err = n.dispatch(tag, tok, ctx)
	case KindFilter:
		err = n.callFilter(nd, tag, tok, ctx)
	case KindJoin:
		err = n.callJoin(nd, side, tag, tok, ctx)
	case KindTerminal:
		err = n.callTerminal(nd, tag, tok, ctx)
	}
	if err != nil {
		return ruleerr.Annotate(err, n.trailEntry(nd, tok))
	}
	return nil
}

func (n *Network) trailEntry(nd *node, tok *token.Token) string {
	if tok == nil {
		return fmt.Sprintf("rule LHS (%s) node %d", nd.describe(), nd.id)
	}
	return fmt.Sprintf("rule LHS (%s) node %d token %s", nd.describe(), nd.id, tok)
}

// dispatch routes a token to the class nodes of the top fact's type and
// its ancestors. CLEAR reaches every class node.
func (n *Network) dispatch(tag token.Tag, tok *token.Token, ctx *Context) error {
	if tag == token.Clear {
		return n.propagate(n.nodes[RootID], tag, tok, ctx)
	}
	for _, name := range tok.TopFact().Template().Lineage() {
		id, ok := n.classes[name]
		if !ok {
			continue
		}
		if err := n.CallNode(id, Left, tag, tok, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) callFilter(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	if tag == token.Clear {
		n.emit(nd, tag, tok)
		return n.propagate(nd, tag, tok, ctx)
	}
	if tag.IsRemoval() && nd.pred.PassOnRetract() {
		return n.propagate(nd, tag, tok, ctx)
	}

	ctx.setToken(tok)
	ok, err := nd.pred.Test(tok.TopFact(), ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	n.emit(nd, tag, tok)
	return n.propagate(nd, tag, tok, ctx)
}

func (n *Network) propagate(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	for _, e := range nd.succ {
		if err := n.CallNode(e.node, e.side, tag, tok, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (n *Network) emit(nd *node, tag token.Tag, tok *token.Token) {
	if n.listener != nil {
		n.listener(Event{Kind: EventPatternMatched, Node: nd.id, Tag: tag, Token: tok})
	}
}

// ListNodes describes every live node, one per line, in handle order.
func (n *Network) ListNodes() string {
	var b strings.Builder
	for _, nd := range n.nodes {
		if nd == nil {
			continue
		}
		fmt.Fprintf(&b, "%d %s", nd.id, nd.describe())
		if nd.old {
			b.WriteString(" (old)")
		}
		if len(nd.succ) > 0 {
			b.WriteString(" ->")
			for _, e := range nd.succ {
				fmt.Fprintf(&b, " %d%s", e.node, e.side)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
