package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/fact"
	"github.com/roach88/rete/internal/value"
)

// Template builds a template for tests. Slot names prefixed with "$" are
// multislots.
func Template(t testing.TB, name string, parent *fact.Template, slots ...string) *fact.Template {
	t.Helper()
	specs := make([]fact.Slot, len(slots))
	for i, s := range slots {
		if len(s) > 1 && s[0] == '$' {
			specs[i] = fact.Slot{Name: s[1:], Multi: true, Default: value.List{}}
			continue
		}
		specs[i] = fact.Slot{Name: s}
	}
	tmpl, err := fact.NewTemplate(name, parent, specs...)
	require.NoError(t, err)
	return tmpl
}

// Facts numbers facts the way working memory would, without a network.
type Facts struct {
	t      testing.TB
	nextID int64
}

// NewFacts creates a fact factory whose first fact is f-1.
func NewFacts(t testing.TB) *Facts {
	return &Facts{t: t}
}

// New creates a fact of tmpl with the next id. Slot values go through
// value.FromGo, so plain strings become symbols.
func (fs *Facts) New(tmpl *fact.Template, slots map[string]any) *fact.Fact {
	fs.t.Helper()
	vals := make(map[string]value.Value, len(slots))
	for name, raw := range slots {
		v, err := value.FromGo(raw)
		require.NoError(fs.t, err, "slot %s", name)
		vals[name] = v
	}
	f, err := fact.New(tmpl, vals)
	require.NoError(fs.t, err)
	fs.nextID++
	f.SetID(fs.nextID)
	return f
}
