package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/harness"
)

// journalScenario runs a scenario into the database at db under runID.
func journalScenario(t *testing.T, db, runID, name string, watch bool) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    db,
		Watch:       watch,
		MaxFirings:  engine.DefaultMaxFirings,
		RunIDs:      engine.NewFixedGenerator(runID),
	}
	require.NoError(t, runScenarioFile(opts, scenarioPath(name), cmd))
	return buf.String()
}

func TestRun_Text(t *testing.T) {
	out, err := execute(t, "run", scenarioPath("adult_badge"))
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: adult_badge\n")
	assert.Contains(t, out, "Run:      adult_badge\n")
	assert.Contains(t, out, "Firings:  1\n")
	assert.Contains(t, out, "  f-1 person {\"age\":15,\"name\":\"bob\"}\n")
	assert.Contains(t, out, "  f-2 person {\"age\":12,\"name\":\"amy\"}\n")
	assert.Contains(t, out, "✓ passed")
}

func TestRun_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", scenarioPath("task_focus"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		RunID  string    `json:"run_id"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "task_focus", resp.RunID)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, 4, resp.Data.Firings)
}

func TestRun_JournalsAndWatches(t *testing.T) {
	db := filepath.Join(t.TempDir(), "rete.db")
	out := journalScenario(t, db, "run-1", "adult_badge", true)

	assert.Contains(t, out, "FIRE 1 adult: f-1\n")
	assert.Contains(t, out, "Run:      run-1\n")
	_, err := os.Stat(db)
	require.NoError(t, err)
}

func TestRun_FailingScenario(t *testing.T) {
	s := `
name: wrong_count
description: "expects a firing that never happens"
templates:
  - { name: person, slots: [name] }
rules:
  - name: greet
    patterns:
      - template: person
facts:
  - { template: person, slots: { name: bob } }
flow:
  - run: 0
    expect: { fired: 2 }
assertions:
  - { type: fire_count, rule: greet, count: 1 }
`
	path := filepath.Join(t.TempDir(), "wrong_count.yaml")
	require.NoError(t, os.WriteFile(path, []byte(s), 0644))

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failed")
	assert.Contains(t, out, "flow[0] run: expected 2 firings, got 1")
}

func TestRun_MissingScenario(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestNodes(t *testing.T) {
	scenario, err := harness.LoadScenario(scenarioPath("adult_badge"))
	require.NoError(t, err)
	eng, err := harness.Load(scenario)
	require.NoError(t, err)
	want := eng.ListNodes()
	require.NoError(t, eng.Close())

	out, err := execute(t, "nodes", scenarioPath("adult_badge"))
	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.Contains(t, out, "terminal adult")

	out, err = execute(t, "--format", "json", "nodes", scenarioPath("adult_badge"))
	require.NoError(t, err)
	var resp struct {
		Data NodesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"adult"}, resp.Data.Rules)
	assert.Equal(t, want, resp.Data.Listing)
}
