// Package harness runs YAML scenarios against the shape builder and row
// materializer.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: left_join_collapse
//	description: "Unmatched left joins collapse to null"
//	schema: |
//	  tables: users: columns: {id: {type: "integer", not_null: true}}
//	  tables: posts: columns: {id: {type: "integer", not_null: true}, user_id: "integer"}
//	query:
//	  from: users
//	  joins:
//	    - table: posts
//	      kind: left
//	      on: [{column: users.id, equals_column: posts.user_id}]
//	rows:
//	  - [1, 10, 1]
//	  - [2, null, null]
//	assertions:
//	  - type: mode
//	    mode: multiple
//	  - type: nullability
//	    nullability: {users: not-null, posts: nullable}
//	  - type: results
//	    rows:
//	      - {users: {id: 1}, posts: {id: 10, user_id: 1}}
//	      - {users: {id: 2}, posts: null}
//
// Rows are RawRows in projection order and are materialized directly.
// A scenario may instead give setup SQL, in which case the query runs
// against a fresh in-memory SQLite database and the driver supplies the
// rows.
//
// # Assertion Types
//
//   - mode: the selection mode
//   - nullability: per-table nullability (subset match)
//   - field_nullable: nullability of one leaf, addressed by dotted path
//   - results: every materialized row, compared as canonical JSON
//   - row_count: number of materialized rows
//   - sql: the compiled SQLite statement
//   - error: the build error code the query must fail with
//
// # Deterministic Testing
//
// Each scenario runs in isolation with logging discarded. Golden snapshots
// (RunWithGolden) store the plan and rows as canonical JSON, so map order
// never changes a snapshot.
package harness
