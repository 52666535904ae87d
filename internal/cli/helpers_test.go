package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/store"
)

var (
	schemaDir  = filepath.Join("testdata", "schema")
	usersCUE   = filepath.Join("testdata", "schema", "users.cue")
	queriesDir = filepath.Join("testdata", "queries")
)

func queryPath(name string) string {
	return filepath.Join(queriesDir, name+".yaml")
}

// executeCommand runs cmd with args and returns stdout, stderr and the error.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolateConfig keeps a developer's QSHAPE_* environment out of the tests.
func isolateConfig(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QSHAPE_DATABASE_DRIVER", "QSHAPE_DATABASE_DSN", "QSHAPE_DIALECT",
		"QSHAPE_WORKERS", "QSHAPE_CONTINUE_ON_ERROR",
		"QSHAPE_LOG_LEVEL", "QSHAPE_LOG_FORMAT", "QSHAPE_LOG_SEQ_URL",
	} {
		t.Setenv(key, "")
	}
}

// createBlogDB writes a SQLite database matching testdata/schema.
func createBlogDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.db")
	st, err := store.Open(store.DriverSQLite, path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, orgId INTEGER)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, userId INTEGER NOT NULL, title TEXT)`,
		`INSERT INTO users VALUES (1, 'Ann', NULL), (2, 'Bob', 4)`,
		`INSERT INTO posts VALUES (7, 1, 'Hi')`,
	} {
		require.NoError(t, st.Exec(ctx, stmt))
	}
	return path
}
