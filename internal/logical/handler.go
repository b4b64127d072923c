// Package logical maintains logical support: facts asserted by a logical
// rule stay in working memory only while a match supporting them exists.
package logical

import (
	"log/slog"
	"sync"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/token"
)

// MatchInfoSource decides whether modifying the fact at factIndex of tok
// changed anything the match depends on.
type MatchInfoSource interface {
	IsRelevantChange(factIndex int, tok *token.Token, ctx *rete.Context) bool
}

// SupportRegistry is working memory's side of logical support. DropSupport
// removes tok from f's supporters; working memory retracts f once nothing
// supports it.
type SupportRegistry interface {
	DropSupport(f *fact.Fact, tok *token.Token) error
}

type entry struct {
	mu    sync.Mutex
	facts []*fact.Fact
}

// Handler is the dependency table of one logical rule: supporting token to
// the facts it supports.
type Handler struct {
	info     MatchInfoSource
	registry SupportRegistry
	logger   *slog.Logger

	mu    sync.Mutex
	table map[string]*entry
}

var _ rete.TokenListener = (*Handler)(nil)

// NewHandler creates an empty handler. A nil info treats every modify as
// relevant.
func NewHandler(info MatchInfoSource, registry SupportRegistry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{info: info, registry: registry, logger: logger, table: make(map[string]*entry)}
}

// RecordSupport records that tok supports f. Concurrent calls for the same
// token are safe.
func (h *Handler) RecordSupport(f *fact.Fact, tok *token.Token) {
	key := tok.Key()
	h.mu.Lock()
	e, ok := h.table[key]
	if !ok {
		e = &entry{}
		h.table[key] = e
	}
	h.mu.Unlock()

	e.mu.Lock()
	e.facts = append(e.facts, f)
	e.mu.Unlock()
}

// TokenMatched reacts to a token event reaching the rule's terminal.
func (h *Handler) TokenMatched(tag token.Tag, tok *token.Token, ctx *rete.Context) error {
	switch tag {
	case token.Clear:
		h.mu.Lock()
		clear(h.table)
		h.mu.Unlock()
		return nil
	case token.Update:
		return nil
	case token.ModifyAdd, token.ModifyRemove:
		if !h.relevant(tok, ctx) {
			return nil
		}
	}
	return h.cascade(tok)
}

func (h *Handler) relevant(tok *token.Token, ctx *rete.Context) bool {
	if h.info == nil || ctx == nil {
		return true
	}
	f := ctx.Fact()
	seen := false
	// A self-join holds the same fact at several positions; each reads its own slots.
	for i := 0; i < tok.Size(); i++ {
		if tok.Fact(i) != f {
			continue
		}
		seen = true
		if h.info.IsRelevantChange(i, tok, ctx) {
			return true
		}
	}
	return !seen
}

// cascade deletes tok's entry and drops its support from every fact in it.
func (h *Handler) cascade(tok *token.Token) error {
	key := tok.Key()
	h.mu.Lock()
	e, ok := h.table[key]
	delete(h.table, key)
	h.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	facts := e.facts
	e.facts = nil
	e.mu.Unlock()

	h.logger.Debug("logical support withdrawn", "token", tok.String(), "facts", len(facts))
	for _, f := range facts {
		if err := h.registry.DropSupport(f, tok); err != nil {
			return err
		}
	}
	return nil
}

// Supported returns the facts tok currently supports.
func (h *Handler) Supported(tok *token.Token) []*fact.Fact {
	h.mu.Lock()
	e, ok := h.table[tok.Key()]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*fact.Fact, len(e.facts))
	copy(out, e.facts)
	return out
}

// Len returns the number of supporting tokens.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.table)
}
