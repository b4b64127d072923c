package agenda

import (
	"fmt"

	"github.com/roach88/rete/internal/rete"
	"github.com/roach88/rete/internal/token"
)

// Activation is one satisfied rule instance.
type Activation struct {
	Rule      *rete.Rule
	Token     *token.Token
	Salience  int
	Time      int64
	TotalTime int64

	// Seq is the agenda-wide insertion sequence. It makes every strategy a
	// total order.
	Seq int64

	index int
}

func newActivation(rule *rete.Rule, tok *token.Token, seq int64) *Activation {
	return &Activation{
		Rule:      rule,
		Token:     tok,
		Salience:  rule.Salience,
		Time:      tok.Time(),
		TotalTime: tok.TotalTime(),
		Seq:       seq,
		index:     -1,
	}
}

func (a *Activation) key() string { return activationKey(a.Rule.Name, a.Token) }

func activationKey(rule string, tok *token.Token) string { return rule + "|" + tok.Key() }

// String renders the activation the way watch output shows it.
func (a *Activation) String() string {
	return fmt.Sprintf("%d %s: %s", a.Salience, a.Rule.Name, a.Token)
}
