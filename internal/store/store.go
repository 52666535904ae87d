package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/qshape/internal/querysql"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
)

// DialectFor maps a driver name to the SQL dialect it speaks.
func DialectFor(driver string) (querysql.Dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return querysql.DialectSQLite, nil
	case DriverPostgres, "postgres", "postgresql":
		return querysql.DialectPostgres, nil
	case DriverMySQL:
		return querysql.DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported driver %q, must be %q, %q, or %q",
			driver, DriverSQLite, DriverPostgres, DriverMySQL)
	}
}

// Store runs shaped queries against one database.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
	logger  *slog.Logger
}

// Open connects to the database described by driver and dsn.
//
// For sqlite3 the dsn is a file path (or ":memory:"); the pool is limited
// to one connection and the standard pragmas are applied. For pgx the dsn
// is a libpq connection string or URL. For mysql it is a go-sql-driver DSN;
// parseTime is forced on so DATETIME columns scan as time.Time.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case querysql.DialectSQLite:
		db, err = sql.Open(DriverSQLite, dsn)
	case querysql.DialectPostgres:
		db, err = openPostgres(dsn)
	case querysql.DialectMySQL:
		db, err = openMySQL(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.DialectSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return New(db, dialect), nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	return sql.Open(DriverPostgres, stdlib.RegisterConnConfig(config))
}

func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return sql.Open(DriverMySQL, cfg.FormatDSN())
}

// New wraps an existing connection pool. The caller keeps ownership of
// any driver-specific configuration.
func New(db *sql.DB, dialect querysql.Dialect) *Store {
	return &Store{db: db, dialect: dialect, logger: slog.Default()}
}

// WithLogger returns a copy of s that logs to logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	cp := *s
	cp.logger = logger
	return &cp
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect is the SQL dialect queries are compiled to.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Exec runs a statement that returns no rows, such as fixture DDL.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
