package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/compiler"
)

const usersPostsSchema = `
tables: users: columns: {
	id:   {type: "integer", not_null: true}
	name: {type: "text", not_null: true}
}
tables: posts: columns: {
	id:      {type: "integer", not_null: true}
	user_id: {type: "integer", not_null: true}
}
`

func mustQuery(t *testing.T, src string) compiler.QueryDef {
	t.Helper()
	def, err := compiler.ParseQuery([]byte(src))
	require.NoError(t, err)
	return *def
}

func boolPtr(b bool) *bool { return &b }

func TestRun_Single(t *testing.T) {
	scenario := &Scenario{
		Name:        "single",
		Description: "single table",
		Schema:      usersPostsSchema,
		Query:       mustQuery(t, "from: users"),
		Rows:        [][]any{{1, "Ann"}, {2, "Bob"}},
		Assertions: []Assertion{
			{Type: AssertMode, Mode: "single"},
			{Type: AssertRowCount, Count: 2},
			{Type: AssertResults, Rows: []any{
				map[string]any{"id": 1, "name": "Ann"},
				map[string]any{"id": 2, "name": "Bob"},
			}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "single", result.Mode)
	assert.Equal(t, map[string]string{"users": "not-null"}, result.Nullability)
	require.NotNil(t, result.Schema())
	assert.Equal(t, 2, result.Schema().Width)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "every assertion is wrong",
		Schema:      usersPostsSchema,
		Query: mustQuery(t, `
from: users
joins:
  - table: posts
    kind: left
    on: [{column: users.id, equals_column: posts.user_id}]
`),
		Rows: [][]any{{1, "Ann", nil, nil}},
		Assertions: []Assertion{
			{Type: AssertMode, Mode: "single"},
			{Type: AssertNullability, Nullability: map[string]string{"posts": "not-null"}},
			{Type: AssertFieldNullable, Path: "posts.id", Nullable: boolPtr(false)},
			{Type: AssertFieldNullable, Path: "posts.missing", Nullable: boolPtr(true)},
			{Type: AssertResults, Rows: []any{map[string]any{"users": nil}}},
			{Type: AssertRowCount, Count: 3},
			{Type: AssertSQL, SQL: "SELECT 1"},
			{Type: AssertError, Code: "UNRESOLVED_TABLE"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 8)
	assert.Contains(t, result.Errors[0], "Assertion failed: mode")
	assert.Contains(t, result.Errors[1], "posts is nullable")
	assert.Contains(t, result.Errors[2], "posts.id nullable=true")
	assert.Contains(t, result.Errors[3], "leaf not found")
	assert.Contains(t, result.Errors[4], `"posts":null`)
	assert.Contains(t, result.Errors[4], "Materialized rows:")
	assert.Contains(t, result.Errors[5], "1 rows")
	assert.Contains(t, result.Errors[6], `LEFT JOIN "posts"`)
	assert.Contains(t, result.Errors[7], "no error")
}

func TestRun_BuildErrorRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:        "ambiguous",
		Description: "mixed nested object",
		Schema:      usersPostsSchema,
		Query: mustQuery(t, `
from: users
joins:
  - table: posts
    kind: inner
    on: [{column: users.id, equals_column: posts.user_id}]
select:
  mixed:
    name: users.name
    post: posts.id
`),
		Assertions: []Assertion{{Type: AssertError, Code: "AMBIGUOUS_PARTIAL_SELECTION"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "AMBIGUOUS_PARTIAL_SELECTION", result.ErrorCode)
	assert.Empty(t, result.Mode)
	assert.Nil(t, result.Schema())
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "short_row",
		Description: "row too short",
		Schema:      usersPostsSchema,
		Query:       mustQuery(t, "from: users"),
		Rows:        [][]any{{1}},
		Assertions:  []Assertion{{Type: AssertMode, Mode: "single"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, ErrCodeRowShape, result.ErrorCode)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error [ROW_SHAPE_MISMATCH]")
}

func TestRun_ContinueOnErrorKeepsGoodRows(t *testing.T) {
	scenario := &Scenario{
		Name:            "partial_failure",
		Description:     "one bad row among good ones",
		Schema:          usersPostsSchema,
		Query:           mustQuery(t, "from: users"),
		Rows:            [][]any{{1, "Ann"}, {2}, {3, "Cy"}},
		Workers:         3,
		ContinueOnError: true,
		Assertions: []Assertion{
			{Type: AssertError, Code: ErrCodeRowShape},
			{Type: AssertRowCount, Count: 3},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Rows, 3)
	assert.Nil(t, result.Rows[1])
	assert.NotNil(t, result.Rows[2])
}

func TestRun_BadSchema(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_schema",
		Description: "schema does not compile",
		Schema:      `tables: users: columns: id: "uuid"`,
		Query:       mustQuery(t, "from: users"),
		Assertions:  []Assertion{{Type: AssertRowCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile schema")
}

func TestRun_BadQuery(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_query",
		Description: "from names a table that does not exist",
		Schema:      usersPostsSchema,
		Query:       mustQuery(t, "from: ghosts"),
		Assertions:  []Assertion{{Type: AssertRowCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile query")
}

func TestRun_SetupFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "setup SQL is invalid",
		Schema:      usersPostsSchema,
		Query:       mustQuery(t, "from: users"),
		Setup:       "CREATE TABLE (",
		Assertions:  []Assertion{{Type: AssertRowCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup")
}
