package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
)

func testTables() (users, posts *schema.Table) {
	users = schema.MustTable("users",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "name", Type: schema.TypeText, NotNull: true},
	)
	posts = schema.MustTable("posts",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "user_id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "title", Type: schema.TypeText},
	)
	return users, posts
}

func mustPlan(t *testing.T, q *queryir.Query) *shape.Plan {
	t.Helper()
	plan, err := shape.Build(q)
	require.NoError(t, err)
	return plan
}

func TestCompile_SingleTable(t *testing.T) {
	users, _ := testTables()
	plan := mustPlan(t, queryir.From(users))

	sql, params, err := NewSQLCompiler(DialectSQLite).Compile(plan)
	require.NoError(t, err)

	assert.Equal(t, `SELECT "users"."id", "users"."name" FROM "users"`, sql)
	assert.Empty(t, params)
}

func TestCompile_JoinsInProjectionOrder(t *testing.T) {
	users, posts := testTables()
	plan := mustPlan(t, queryir.From(users).
		LeftJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
		Order(queryir.Col(users.C("id")), false).
		Order(queryir.Col(posts.C("id")), true))

	sql, _, err := NewSQLCompiler(DialectSQLite).Compile(plan)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "users"."id", "users"."name", "posts"."id", "posts"."user_id", "posts"."title" `+
			`FROM "users" LEFT JOIN "posts" ON "users"."id" = "posts"."user_id" `+
			`ORDER BY "users"."id" ASC, "posts"."id" DESC`,
		sql)
}

func TestCompile_ValuesAreParameterized(t *testing.T) {
	users, posts := testTables()
	plan := mustPlan(t, queryir.From(users).
		InnerJoin(posts, queryir.And{Predicates: []queryir.Predicate{
			queryir.Eq(users.C("id"), posts.C("user_id")),
			queryir.Equals{Column: posts.C("title"), Value: ir.IRString("Hi")},
		}}).
		Select(queryir.Obj(
			queryir.F("name", queryir.Col(users.C("name"))),
			queryir.F("shout", queryir.SQL("upper(?) || posts.title", ir.IRString("re: "))),
		)).
		Filter(queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Column: users.C("name"), Value: ir.IRString("Ann")},
			queryir.BoundEquals{Column: users.C("id"), Param: "uid"},
		}}))

	c := NewSQLCompiler(DialectPostgres)
	c.BoundValues["uid"] = int64(42)

	sql, params, err := c.Compile(plan)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "users"."name", upper($1) || posts.title FROM "users" `+
			`INNER JOIN "posts" ON ("users"."id" = "posts"."user_id") AND ("posts"."title" = $2) `+
			`WHERE ("users"."name" = $3) AND ("users"."id" = $4)`,
		sql)
	assert.Equal(t, []any{"re: ", "Hi", "Ann", int64(42)}, params)
	assert.NotContains(t, sql, "Ann")
}

func TestCompile_Dialects(t *testing.T) {
	users, _ := testTables()

	testCases := []struct {
		dialect Dialect
		want    string
	}{
		{
			dialect: DialectSQLite,
			want:    `SELECT "users"."id", "users"."name" FROM "users" WHERE "users"."name" = ? LIMIT ? OFFSET ?`,
		},
		{
			dialect: DialectPostgres,
			want:    `SELECT "users"."id", "users"."name" FROM "users" WHERE "users"."name" = $1 LIMIT $2 OFFSET $3`,
		},
		{
			dialect: DialectMySQL,
			want:    "SELECT `users`.`id`, `users`.`name` FROM `users` WHERE `users`.`name` = ? LIMIT ? OFFSET ?",
		},
	}

	for _, tc := range testCases {
		t.Run(string(tc.dialect), func(t *testing.T) {
			plan := mustPlan(t, queryir.From(users).
				Filter(queryir.Equals{Column: users.C("name"), Value: ir.IRString("Ann")}).
				LimitTo(10).
				OffsetBy(20))

			sql, params, err := NewSQLCompiler(tc.dialect).Compile(plan)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sql)
			assert.Equal(t, []any{"Ann", int64(10), int64(20)}, params)
		})
	}
}

func TestCompile_OffsetWithoutLimit(t *testing.T) {
	users, _ := testTables()

	testCases := []struct {
		dialect Dialect
		suffix  string
	}{
		{DialectSQLite, " LIMIT -1 OFFSET ?"},
		{DialectMySQL, " LIMIT 18446744073709551615 OFFSET ?"},
		{DialectPostgres, " OFFSET $1"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.dialect), func(t *testing.T) {
			plan := mustPlan(t, queryir.From(users).OffsetBy(5))
			sql, params, err := NewSQLCompiler(tc.dialect).Compile(plan)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, tc.suffix), sql)
			assert.Equal(t, []any{int64(5)}, params)
		})
	}
}

func TestCompile_BoundLimit(t *testing.T) {
	users, _ := testTables()
	q := queryir.From(users)
	q.Limit = &queryir.Count{Param: "page_size"}
	plan := mustPlan(t, q)

	c := NewSQLCompiler(DialectSQLite)
	_, _, err := c.Compile(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")

	c.BoundValues["page_size"] = 25
	sql, params, err := c.Compile(plan)
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT ?")
	assert.Equal(t, []any{25}, params)
}

func TestCompile_AliasedSelfJoin(t *testing.T) {
	users, _ := testTables()
	friends := users.As("friends")

	plan := mustPlan(t, queryir.From(users).
		FullJoin(friends, queryir.Eq(users.C("id"), friends.C("id"))))

	sql, _, err := NewSQLCompiler(DialectSQLite).Compile(plan)
	require.NoError(t, err)
	assert.Contains(t, sql, `FULL JOIN "users" AS "friends" ON "users"."id" = "friends"."id"`)
	assert.Contains(t, sql, `"friends"."name"`)

	_, _, err = NewSQLCompiler(DialectMySQL).Compile(plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FULL JOIN")
}

func TestCompile_Predicates(t *testing.T) {
	users, _ := testTables()

	testCases := []struct {
		name   string
		pred   queryir.Predicate
		where  string
		params []any
	}{
		{
			name:  "is null",
			pred:  queryir.IsNull{Column: users.C("name")},
			where: `"users"."name" IS NULL`,
		},
		{
			name:  "is not null pointer",
			pred:  &queryir.IsNull{Column: users.C("name"), Not: true},
			where: `"users"."name" IS NOT NULL`,
		},
		{
			name:  "equals null",
			pred:  queryir.Equals{Column: users.C("name"), Value: ir.IRNull{}},
			where: `"users"."name" IS NULL`,
		},
		{
			name:  "empty and",
			pred:  queryir.And{},
			where: `1 = 1`,
		},
		{
			name:   "raw with argument",
			pred:   queryir.Raw{SQL: "length(users.name) > ? AND users.name <> '?'", Args: []ir.IRValue{ir.IRInt(3)}},
			where:  `length(users.name) > ? AND users.name <> '?'`,
			params: []any{int64(3)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan := mustPlan(t, queryir.From(users).Filter(tc.pred))
			sql, params, err := NewSQLCompiler(DialectSQLite).Compile(plan)
			require.NoError(t, err)
			assert.Equal(t, `SELECT "users"."id", "users"."name" FROM "users" WHERE `+tc.where, sql)
			if tc.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tc.params, params)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	users, _ := testTables()

	t.Run("nil plan", func(t *testing.T) {
		_, _, err := NewSQLCompiler(DialectSQLite).Compile(nil)
		require.Error(t, err)
	})

	t.Run("unknown dialect", func(t *testing.T) {
		_, _, err := NewSQLCompiler("oracle").Compile(mustPlan(t, queryir.From(users)))
		require.Error(t, err)
	})

	t.Run("unbound parameter", func(t *testing.T) {
		plan := mustPlan(t, queryir.From(users).Filter(queryir.BoundEquals{Column: users.C("id"), Param: "uid"}))
		_, _, err := NewSQLCompiler(DialectSQLite).Compile(plan)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"uid"`)
	})

	t.Run("placeholder count mismatch", func(t *testing.T) {
		plan := mustPlan(t, queryir.From(users).Select(queryir.Obj(queryir.F("x", queryir.SQL("? + ?", ir.IRInt(1))))))
		_, _, err := NewSQLCompiler(DialectSQLite).Compile(plan)
		require.Error(t, err)
	})

	t.Run("object parameter", func(t *testing.T) {
		plan := mustPlan(t, queryir.From(users).Filter(queryir.Equals{Column: users.C("name"), Value: ir.IRObject{}}))
		_, _, err := NewSQLCompiler(DialectSQLite).Compile(plan)
		require.Error(t, err)
	})
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("Postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	_, err = ParseDialect("oracle")
	require.Error(t, err)
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, DialectSQLite.Quote(`a"b`))
	assert.Equal(t, "`a``b`", DialectMySQL.Quote("a`b"))
}
