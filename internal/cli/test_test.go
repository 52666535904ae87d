package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineScenario = `name: %s
description: "Anchor rows in single mode"
schema: |
  tables: users: columns: {
    id:   {type: "integer", not_null: true}
    name: "text"
  }
query:
  from: users
rows:
  - [1, "Ann"]
assertions:
  - type: mode
    mode: single
  - type: row_count
    count: %d
`

// writeScenario writes an inline-schema scenario into dir.
func writeScenario(t *testing.T, dir, name string, count int) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	content := []byte(fmt.Sprintf(inlineScenario, name, count))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestTestCommand_Testdata(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})

	stdout, _, err := executeCommand(t, cmd, filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ users_single")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "passes", 1)
	writeScenario(t, dir, "fails", 3)

	cmd := NewTestCommand(&RootOptions{Format: "json"})
	stdout, _, err := executeCommand(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "fails" {
			assert.False(t, s.Pass)
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "row_count")
		}
	}
}

func TestTestCommand_GoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "anchor", 1)
	goldenPath := filepath.Join(dir, "golden", "anchor.golden")

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	stdout, _, err := executeCommand(t, cmd, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ anchor (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t,
		`{"mode":"single","nullability":{"users":"not-null"},"rows":[{"id":1,"name":"Ann"}],"scenario_name":"anchor"}`,
		string(data))

	cmd = NewTestCommand(&RootOptions{Format: "text"})
	_, _, err = executeCommand(t, cmd, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"rows":[]}`), 0644))
	cmd = NewTestCommand(&RootOptions{Format: "text"})
	stdout, _, err = executeCommand(t, cmd, dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "Golden file mismatch")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "users_a", 1)
	writeScenario(t, dir, "orgs_a", 5)

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	stdout, _, err := executeCommand(t, cmd, dir, "--filter", "users_*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")

	cmd = NewTestCommand(&RootOptions{Format: "text"})
	stdout, _, err = executeCommand(t, cmd, dir, "--filter", "posts_*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")

	cmd = NewTestCommand(&RootOptions{Format: "text"})
	_, _, err = executeCommand(t, cmd, dir, "--filter", "[")
	require.Error(t, err)
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0644))

	cmd := NewTestCommand(&RootOptions{Format: "text"})
	stdout, _, err := executeCommand(t, cmd, dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ bad.yaml")
	assert.Contains(t, stdout, "Load error")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	_, _, err := executeCommand(t, cmd, filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
