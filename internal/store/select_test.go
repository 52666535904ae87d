package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/queryir"
)

func obj(pairs ...ir.IRPair) ir.IRObject {
	return ir.NewIRObjectFromPairs(pairs...)
}

func annRow() ir.IRObject {
	return obj(
		ir.O("id", ir.IRInt(1)),
		ir.O("name", ir.IRString("ann")),
		ir.O("active", ir.IRBool(true)),
	)
}

func bobRow() ir.IRObject {
	return obj(
		ir.O("id", ir.IRInt(2)),
		ir.O("name", ir.IRString("bob")),
		ir.O("active", ir.IRBool(false)),
	)
}

func helloPost() ir.IRObject {
	return obj(
		ir.O("id", ir.IRInt(10)),
		ir.O("user_id", ir.IRInt(1)),
		ir.O("title", ir.IRString("hello")),
		ir.O("meta", obj(ir.O("tags", ir.IRArray{ir.IRString("go")}))),
	)
}

func orphanPost() ir.IRObject {
	return obj(
		ir.O("id", ir.IRInt(11)),
		ir.O("user_id", ir.IRInt(3)),
		ir.O("title", ir.IRString("orphan")),
		ir.O("meta", ir.IRNull{}),
	)
}

func TestSelect_SingleTable(t *testing.T) {
	s := createTestStore(t)
	users, _ := testTables()

	res, err := s.Select(context.Background(),
		mustPlan(t, queryir.From(users).Order(queryir.Col(users.C("id")), false)),
		SelectOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []ir.IRValue{annRow(), bobRow()}, res.Rows)
}

func TestSelect_LeftJoinCollapsesMissingSide(t *testing.T) {
	s := createTestStore(t)
	users, posts := testTables()

	q := queryir.From(users).
		LeftJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
		Order(queryir.Col(users.C("id")), false)

	res, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, []ir.IRValue{
		obj(ir.O("users", annRow()), ir.O("posts", helloPost())),
		obj(ir.O("users", bobRow()), ir.O("posts", ir.IRNull{})),
	}, res.Rows)
}

func TestSelect_RightJoinCollapsesAnchor(t *testing.T) {
	s := createTestStore(t)
	users, posts := testTables()

	q := queryir.From(users).
		RightJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
		Order(queryir.Col(posts.C("id")), false)

	res, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{})
	require.NoError(t, err)

	assert.Equal(t, []ir.IRValue{
		obj(ir.O("users", annRow()), ir.O("posts", helloPost())),
		obj(ir.O("users", ir.IRNull{}), ir.O("posts", orphanPost())),
	}, res.Rows)
}

func TestSelect_FullJoin(t *testing.T) {
	s := createTestStore(t)
	users, posts := testTables()

	// NULL post ids sort first in SQLite ascending order.
	q := queryir.From(users).
		FullJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
		Order(queryir.Col(posts.C("id")), false)

	res, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, []ir.IRValue{
		obj(ir.O("users", bobRow()), ir.O("posts", ir.IRNull{})),
		obj(ir.O("users", annRow()), ir.O("posts", helloPost())),
		obj(ir.O("users", ir.IRNull{}), ir.O("posts", orphanPost())),
	}, res.Rows)
}

func TestSelect_PartialWithBoundParam(t *testing.T) {
	s := createTestStore(t)
	users, posts := testTables()

	q := queryir.From(users).
		LeftJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
		Select(queryir.Obj(
			queryir.F("name", queryir.Col(users.C("name"))),
			queryir.F("post", queryir.Obj(
				queryir.F("title", queryir.Col(posts.C("title"))),
			)),
		)).
		Filter(queryir.BoundEquals{Column: users.C("id"), Param: "uid"})

	res, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{
		Params: map[string]any{"uid": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{2}, res.Params)
	assert.Equal(t, []ir.IRValue{
		obj(ir.O("name", ir.IRString("bob")), ir.O("post", ir.IRNull{})),
	}, res.Rows)
}

func TestSelect_MissingParam(t *testing.T) {
	s := createTestStore(t)
	users, _ := testTables()

	q := queryir.From(users).Filter(queryir.BoundEquals{Column: users.C("id"), Param: "uid"})

	_, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

func TestSelect_ExpressionTypeHint(t *testing.T) {
	s := createTestStore(t)
	users, _ := testTables()

	count := queryir.SQL("count(*)")
	count.Type = "integer"

	q := queryir.From(users).Select(queryir.Obj(queryir.F("n", count)))

	res, err := s.Select(context.Background(), mustPlan(t, q), SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []ir.IRValue{obj(ir.O("n", ir.IRInt(2)))}, res.Rows)
}

func TestSelect_NilPlan(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Select(context.Background(), nil, SelectOptions{})
	assert.Error(t, err)
}

func TestSelect_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	users, _ := testTables()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, mustPlan(t, queryir.From(users)), SelectOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
