package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenario copies an example scenario into dir.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(scenarioPath(name))
	require.NoError(t, err)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestTest_AllExamplesPass(t *testing.T) {
	out, err := execute(t, "test", scenarioDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ adult_badge\n")
	assert.Contains(t, out, "✓ badge_audit\n")
	assert.Contains(t, out, "✓ task_focus\n")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenarioDir, "--filter", "task*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "task_focus", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "missing", resp.Data.Scenarios[0].Golden)
}

func TestTest_GoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "adult_badge")
	golden := filepath.Join(dir, "golden", "adult_badge.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adult_badge (golden updated)")

	// The CLI writes the same trace the harness golden tests pin.
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "adult_badge.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	out, err = execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte("scenario: adult_badge\n"), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ adult_badge")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_LoadErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "task_focus")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nflw: []\n"), 0644))

	out, err := execute(t, "test", dir, "-j", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "✓ task_focus")
}

func TestTest_Errors(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "test", scenarioDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "adult_badge.golden"),
		goldenFilePath(filepath.Join("scenarios", "adult_badge.yaml")))
}
