package engine

import (
	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/token"
)

// supportRegistry is working memory's side of one logical rule's
// dependency table. Handlers call it during propagation, so the engine
// lock is already held.
type supportRegistry struct {
	e    *Engine
	rule string
}

func supporterKey(rule string, tok *token.Token) string {
	return rule + "|" + tok.Key()
}

// DropSupport removes tok from f's supporters and retracts f once nothing
// supports it.
func (r *supportRegistry) DropSupport(f *fact.Fact, tok *token.Token) error {
	e := r.e
	supporters, ok := e.support[f.ID()]
	if !ok {
		return nil
	}
	delete(supporters, supporterKey(r.rule, tok))
	if len(supporters) > 0 {
		return nil
	}
	delete(e.support, f.ID())
	if cur, ok := e.facts[f.ID()]; !ok || cur != f {
		return nil
	}
	e.logger.Debug("retracting unsupported fact", "fact", f.ID(), "rule", r.rule)
	return e.retractLocked(f)
}

// addSupportLocked records that rule's match tok supports f. A match
// that re-fires after an irrelevant modify is recorded once.
func (e *Engine) addSupportLocked(f *fact.Fact, rule string, tok *token.Token) {
	supporters, ok := e.support[f.ID()]
	if !ok {
		supporters = make(map[string]bool)
		e.support[f.ID()] = supporters
	}
	key := supporterKey(rule, tok)
	if supporters[key] {
		return
	}
	supporters[key] = true
	if h, ok := e.handlers[rule]; ok {
		h.RecordSupport(f, tok)
	}
}
