package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Examples(t *testing.T) {
	out, err := execute(t, "validate", scenarioDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adult_badge (1 rules)")
	assert.Contains(t, out, "✓ task_focus (2 rules)")
	assert.NotContains(t, out, "✗")
}

func TestValidate_UnknownTemplate(t *testing.T) {
	s := `
name: bad_rule
description: "a rule over a template nobody declared"
templates:
  - { name: person, slots: [name] }
rules:
  - name: greet
    patterns:
      - template: robot
flow:
  - run: 0
assertions:
  - { type: fire_count, rule: greet, count: 0 }
`
	dir := t.TempDir()
	path := filepath.Join(dir, "bad_rule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(s), 0644))

	out, err := execute(t, "--format", "json", "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Scenarios, 1)
	check := resp.Data.Scenarios[0]
	assert.Equal(t, "bad_rule", check.Name)
	assert.Equal(t, CodeInvalid, check.Code)
	assert.Contains(t, check.Error, "unknown template robot")
}

func TestValidate_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: typo\nassertion: []\n"), 0644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ "+path)
	assert.Contains(t, out, CodeLoadFailed+":")
}

func TestValidate_MissingPath(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
