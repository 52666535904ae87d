// Package materialize turns flat, column-ordered rows into structured
// results using a shape.ResultSchema.
//
// Materialization is positional: a RawRow must have exactly one value per
// leaf of the schema, in projection order. A nullable table-rooted group
// whose values are all null collapses to a single null; a not-null group
// always builds its object.
//
// Row and Rows are pure. Rows may spread work across goroutines but returns
// results in input order.
package materialize
