// Package queryir provides the query intermediate representation consumed by
// result-shape computation and SQL rendering.
//
// A Query is an anchor table, an ordered join graph, an optional partial
// field selection, and pass-through clauses (where, group by, order by,
// limit, offset) that this layer validates for references but never
// interprets.
//
//	[builder / YAML] → [Query IR] → [shape.Build]   → Plan (fields, nullability, result schema)
//	                              → [querysql]      → parameterized SQL
//
// SEALED INTERFACES:
//
// Selection and Predicate are sealed interfaces using the marker method
// pattern. Only types in this package implement them, which lets consumers
// switch exhaustively:
//
//	switch n := node.(type) {
//	case Column:
//	case Expression:
//	case Table:
//	case Object:
//	}
//
// JOIN GRAPH:
//
// The graph is append-only. AddJoin rejects a table whose name (or alias)
// is already present, including the anchor. Use schema.Table.As to join the
// same table twice.
package queryir
