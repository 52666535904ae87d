package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCommand_JSON(t *testing.T) {
	isolateConfig(t)
	cmd := NewPlanCommand(&RootOptions{Format: "json"})

	stdout, _, err := executeCommand(t, cmd, schemaDir, queryPath("users_left_posts"))
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Mode        string            `json:"mode"`
			Fingerprint string            `json:"fingerprint"`
			Nullability map[string]string `json:"nullability"`
			SQL         string            `json:"sql"`
			Plan        map[string]any    `json:"plan"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "multiple", resp.Data.Mode)
	assert.Equal(t, map[string]string{"users": "not-null", "posts": "nullable"}, resp.Data.Nullability)
	assert.NotEmpty(t, resp.Data.Fingerprint)
	assert.Contains(t, resp.Data.SQL, `LEFT JOIN "posts"`)
	assert.Contains(t, resp.Data.Plan, "schema")
}

func TestPlanCommand_FingerprintIsStable(t *testing.T) {
	isolateConfig(t)

	fingerprint := func() string {
		cmd := NewPlanCommand(&RootOptions{Format: "json"})
		stdout, _, err := executeCommand(t, cmd, schemaDir, queryPath("users_left_posts"))
		require.NoError(t, err)
		var resp struct {
			Data struct {
				Fingerprint string `json:"fingerprint"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		return resp.Data.Fingerprint
	}

	assert.Equal(t, fingerprint(), fingerprint())
}

func TestPlanCommand_Text(t *testing.T) {
	isolateConfig(t)
	cmd := NewPlanCommand(&RootOptions{Format: "text"})

	stdout, _, err := executeCommand(t, cmd, schemaDir, queryPath("users_left_posts"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Mode: multiple")
	assert.Contains(t, stdout, "  users: not-null\n  posts: nullable")
	assert.Contains(t, stdout, "0. users.id <- users.id")
	assert.Contains(t, stdout, "SQL:")
}

func TestPlanCommand_DialectAndParams(t *testing.T) {
	isolateConfig(t)
	cmd := NewPlanCommand(&RootOptions{Format: "json"})

	stdout, _, err := executeCommand(t, cmd, schemaDir, queryPath("user_by_id"),
		"--dialect", "postgres", "--param", "uid=2")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Mode string `json:"mode"`
			SQL  string `json:"sql"`
			Args []any  `json:"args"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "partial", resp.Data.Mode)
	assert.Contains(t, resp.Data.SQL, `"users"."id" = $1`)
	assert.Equal(t, []any{float64(2)}, resp.Data.Args)
}

func TestPlanCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{
			name:     "missing param",
			args:     []string{schemaDir, queryPath("user_by_id")},
			exitCode: ExitFailure,
			code:     ErrCodeGeneric,
		},
		{
			name:     "ambiguous selection",
			args:     []string{schemaDir, queryPath("ambiguous")},
			exitCode: ExitFailure,
			code:     "AMBIGUOUS_PARTIAL_SELECTION",
		},
		{
			name:     "schema not found",
			args:     []string{"testdata/nope", queryPath("users_only")},
			exitCode: ExitCommandError,
			code:     ErrCodeNotFound,
		},
		{
			name:     "unknown dialect",
			args:     []string{schemaDir, queryPath("users_only"), "--dialect", "oracle"},
			exitCode: ExitCommandError,
			code:     ErrCodeGeneric,
		},
		{
			name:     "bad param",
			args:     []string{schemaDir, queryPath("user_by_id"), "--param", "uid"},
			exitCode: ExitCommandError,
			code:     ErrCodeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfig(t)
			cmd := NewPlanCommand(&RootOptions{Format: "json"})

			stdout, _, err := executeCommand(t, cmd, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"uid=2", "active=true", "name=ann", "ratio=0.5", "empty=", "list=[1, 2]", "expr=a=b"})
	require.NoError(t, err)

	assert.Equal(t, 2, params["uid"])
	assert.Equal(t, true, params["active"])
	assert.Equal(t, "ann", params["name"])
	assert.Equal(t, 0.5, params["ratio"])
	assert.Equal(t, "", params["empty"])
	assert.Equal(t, "[1, 2]", params["list"])
	assert.Equal(t, "a=b", params["expr"])

	_, err = parseParams([]string{"=1"})
	assert.Error(t, err)
}
