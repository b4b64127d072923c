package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/value"
)

func TestTemplate_Multislots(t *testing.T) {
	tmpl := Template(t, "person", nil, "name", "$tags")

	require.Len(t, tmpl.Slots(), 2)
	assert.False(t, tmpl.Slots()[0].Multi)
	assert.True(t, tmpl.Slots()[1].Multi)
	assert.Equal(t, "tags", tmpl.Slots()[1].Name)
}

func TestFacts_NumbersAndConverts(t *testing.T) {
	tmpl := Template(t, "person", nil, "name", "$tags")
	fs := NewFacts(t)

	a := fs.New(tmpl, map[string]any{"name": "bob", "tags": []any{"admin"}})
	b := fs.New(tmpl, map[string]any{"name": `"amy"`})

	assert.Equal(t, int64(1), a.ID())
	assert.Equal(t, int64(2), b.ID())

	name, err := a.Slot("name")
	require.NoError(t, err)
	assert.Equal(t, value.Symbol("bob"), name)

	name, err = b.Slot("name")
	require.NoError(t, err)
	assert.Equal(t, value.String("amy"), name)

	tags, err := b.Slot("tags")
	require.NoError(t, err)
	assert.Equal(t, value.List{}, tags)
}
