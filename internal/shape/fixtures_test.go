package shape

import (
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
)

func testTables() (users, posts, orgs *schema.Table) {
	users = schema.MustTable("users",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "name", Type: schema.TypeText, NotNull: true},
		schema.ColumnDef{Name: "org_id", Type: schema.TypeInteger},
	)
	posts = schema.MustTable("posts",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "user_id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "title", Type: schema.TypeText},
	)
	orgs = schema.MustTable("orgs",
		schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true},
		schema.ColumnDef{Name: "name", Type: schema.TypeText, NotNull: true},
	)
	return users, posts, orgs
}

// usersLeftPosts is users LEFT JOIN posts ON users.id = posts.user_id.
func usersLeftPosts() (*queryir.Query, *schema.Table, *schema.Table) {
	users, posts, _ := testTables()
	q := queryir.From(users).LeftJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id")))
	return q, users, posts
}

func edge(name string, kind queryir.JoinKind) queryir.JoinEdge {
	return queryir.JoinEdge{
		Table: schema.MustTable(name, schema.ColumnDef{Name: "id", Type: schema.TypeInteger, NotNull: true}),
		Kind:  kind,
	}
}
