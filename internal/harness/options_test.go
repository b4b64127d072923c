package harness

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/store"
)

func TestRun_WithStoreAndRunIDs(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	gen := engine.NewFixedGenerator("first", "second")
	scenario := parse(t, minimalScenario)
	for _, want := range []string{"first", "second"} {
		result, err := Run(scenario, WithStore(st), WithRunIDs(gen))
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
		assert.Equal(t, want, result.RunID)
	}

	// The caller's store stays open and holds both runs.
	runs, err := st.ReadRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "minimal", runs[0].Label)

	firings, err := st.ReadFirings(context.Background(), "second")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "greet", firings[0].Rule)
}

func TestRun_WithWatchTees(t *testing.T) {
	var buf bytes.Buffer
	result, err := Run(parse(t, minimalScenario), WithWatch(&buf))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Watch)
	assert.Equal(t, result.Watch, buf.String())
}

func TestLoad_InstallsRulesWithoutFacts(t *testing.T) {
	eng, err := Load(parse(t, pairScenario(`
flow:
  - run: 0
assertions:
  - { type: fire_count, rule: seen, count: 2 }
`)))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, []string{"seen"}, eng.Rules())
	assert.Empty(t, eng.Facts())
	assert.Contains(t, eng.ListNodes(), "terminal seen")
	_, ok := eng.Template("person")
	assert.True(t, ok)
}
