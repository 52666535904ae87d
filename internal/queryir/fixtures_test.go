package queryir

import "github.com/roach88/qshape/internal/schema"

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
		schema.ColumnDef{Name: "name", Type: schema.TypeText},
	)
	return users, posts, orgs
}
