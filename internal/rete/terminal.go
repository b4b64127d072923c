package rete

import (
	"github.com/roach88/rete/internal/token"
)

type terminalState struct {
	rule    *Rule
	logical TokenListener
}

// callTerminal turns complete matches into activations. Removals withdraw
// the activation before the logical listener sees them; additions reach the
// listener first.
func (n *Network) callTerminal(nd *node, tag token.Tag, tok *token.Token, ctx *Context) error {
	t := nd.term

	if tag == token.Clear {
		if t.logical != nil {
			return t.logical.TokenMatched(tag, tok, ctx)
		}
		return nil
	}
	if tag == token.Update && nd.old {
		return nil
	}

	if tag.IsRemoval() {
		if n.sink != nil {
			if err := n.sink.RemoveActivation(t.rule, tok); err != nil {
				return err
			}
		}
		if t.logical != nil {
			return t.logical.TokenMatched(tag, tok, ctx)
		}
		return nil
	}

	if t.logical != nil {
		if err := t.logical.TokenMatched(tag, tok, ctx); err != nil {
			return err
		}
	}
	if n.sink != nil {
		return n.sink.AddActivation(t.rule, tok)
	}
	return nil
}
