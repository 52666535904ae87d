package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	users := usersTable(t)
	posts := MustTable("posts", ColumnDef{Name: "id", Type: TypeInteger, NotNull: true})

	cat, err := NewCatalog(users, posts)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	got, ok := cat.Table("posts")
	require.True(t, ok)
	assert.Same(t, posts, got)

	_, ok = cat.Table("orgs")
	assert.False(t, ok)

	tables := cat.Tables()
	assert.Equal(t, "users", tables[0].Name())
	assert.Equal(t, "posts", tables[1].Name())

	err = cat.Add(MustTable("users", ColumnDef{Name: "id"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table")

	require.Error(t, cat.Add(nil))
}
