package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Help(t *testing.T) {
	cmd := NewRootCommand()

	stdout, _, err := executeCommand(t, cmd, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"plan", "run", "test", "validate"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "format", "config", "log-level", "log-format", "seq-url"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	isolateConfig(t)
	cmd := NewRootCommand()

	_, _, err := executeCommand(t, cmd, "--format", "xml", "validate", schemaDir, queryPath("users_only"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	isolateConfig(t)
	cmd := NewRootCommand()

	_, _, err := executeCommand(t, cmd, "--log-level", "loud", "validate", schemaDir, queryPath("users_only"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "log.level")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	isolateConfig(t)
	cmd := NewRootCommand()

	_, _, err := executeCommand(t, cmd, "--config", filepath.Join(t.TempDir(), "qshape.yaml"),
		"validate", schemaDir, queryPath("users_only"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_ConfigFileSelectsDatabase(t *testing.T) {
	isolateConfig(t)
	dbPath := createBlogDB(t)

	configPath := filepath.Join(t.TempDir(), "qshape.yaml")
	content := "database:\n  driver: sqlite3\n  dsn: " + dbPath + "\nworkers: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cmd := NewRootCommand()
	stdout, _, err := executeCommand(t, cmd, "--config", configPath, "--format", "json",
		"run", schemaDir, queryPath("users_only"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Count)
}

func TestRootCommand_VerboseLogsToStderr(t *testing.T) {
	isolateConfig(t)
	cmd := NewRootCommand()

	stdout, stderr, err := executeCommand(t, cmd, "-v", "--format", "json", "plan", schemaDir, queryPath("users_only"))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout stays valid JSON")
	assert.Contains(t, stderr, "Planned")
}
