// Package schema describes tables and columns as the schema layer supplies them.
//
// Tables are immutable once built. Join graphs and selections hold *Table and
// *Column pointers; nothing in this module copies or mutates them, so a single
// Table may be shared across concurrent query builds.
//
// Column.Table is a back-reference by name, not ownership. Aliasing a table
// (Table.As) produces a new Table whose columns point at the alias.
package schema
