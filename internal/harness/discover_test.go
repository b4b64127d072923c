package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverScenarios(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "nested/c.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	got, err := DiscoverScenarios(dir, ".", "b.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, got)
}

func TestDiscoverScenarios_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := DiscoverScenarios(dir, "missing.yaml")

	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.yaml", nf.Path)
	assert.Equal(t, filepath.Join(dir, "missing.yaml"), nf.ResolvedPath)
}
