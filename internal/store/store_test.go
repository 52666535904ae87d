package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qshape/internal/querysql"
)

func TestOpen_SQLitePragmas(t *testing.T) {
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "pragma.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1")) // NORMAL
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.Equal(t, querysql.DialectSQLite, s.Dialect())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	s1, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s1.Exec(context.Background(), "CREATE TABLE t (id INTEGER)"))
	require.NoError(t, s1.Close())

	s2, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	defer s2.Close()

	var n int
	require.NoError(t, s2.DB().QueryRow("SELECT count(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_BadDSN(t *testing.T) {
	_, err := Open(DriverPostgres, "postgres://%zz")
	assert.Error(t, err)

	_, err = Open(DriverMySQL, "no-slash-here")
	assert.Error(t, err)
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		want   querysql.Dialect
	}{
		{"sqlite3", querysql.DialectSQLite},
		{"sqlite", querysql.DialectSQLite},
		{"pgx", querysql.DialectPostgres},
		{"postgres", querysql.DialectPostgres},
		{"mysql", querysql.DialectMySQL},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
