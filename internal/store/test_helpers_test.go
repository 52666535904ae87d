package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
)

const seedSQL = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, active BOOLEAN NOT NULL);
CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, title TEXT, meta TEXT);
INSERT INTO users (id, name, active) VALUES (1, 'ann', 1), (2, 'bob', 0);
INSERT INTO posts (id, user_id, title, meta) VALUES
	(10, 1, 'hello', '{"tags":["go"]}'),
	(11, 3, 'orphan', NULL);
`

// createTestStore opens a file-backed SQLite store seeded with users and posts.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Exec(context.Background(), seedSQL))
	return s
}

func testTables() (users, posts *schema.Table) {
	users = schema.MustTable("users",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "name", Type: schema.TypeText, NotNull: true},
		schema.ColumnDef{Name: "active", Type: schema.TypeBoolean, NotNull: true},
	)
	posts = schema.MustTable("posts",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "user_id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "title", Type: schema.TypeText},
		schema.ColumnDef{Name: "meta", Type: schema.TypeJSON},
	)
	return users, posts
}

func mustPlan(t *testing.T, q *queryir.Query) *shape.Plan {
	t.Helper()
	plan, err := shape.Build(q)
	require.NoError(t, err)
	return plan
}
