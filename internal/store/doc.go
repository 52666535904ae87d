// Package store executes shaped queries against a live database.
//
// A Store wraps a *sql.DB opened with one of the registered drivers:
//
//   - sqlite3 (github.com/mattn/go-sqlite3)
//   - pgx (github.com/jackc/pgx/v5/stdlib)
//   - mysql (github.com/go-sql-driver/mysql)
//
// Select compiles a shape.Plan to the driver's dialect, scans every row
// into a RawRow coerced by the projected field types, and hands the batch
// to the materializer.
//
// # Database Configuration
//
// SQLite connections get the same pragmas on every open:
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Drivers never see interpolated values. Literals and bound parameters
// are passed as query arguments.
package store
