package queryir

import (
	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/schema"
)

// Selection is a node of the user's requested result shape.
//
// This is a sealed interface - only types in this package implement it.
//
// Selection types:
//   - Column: one column of a table in the graph
//   - Expression: opaque SQL, nullability unknown to this layer
//   - Table: every selectable column of a table, nested under one key
//   - Object: an ordered mapping of keys to further selections
type Selection interface {
	selectionNode() // Marker method - seals interface to this package
}

// Column selects a single column.
type Column struct {
	Ref *schema.Column
}

func (Column) selectionNode() {}

// Expression is raw SQL projected as a single field.
//
// Type is a decode hint for drivers that return loosely typed values;
// TypeUnknown (or empty) copies the driver value through unchanged.
type Expression struct {
	SQL  string
	Args []ir.IRValue
	Type schema.ValueType
}

func (Expression) selectionNode() {}

// Table selects all selectable columns of a table under one key.
type Table struct {
	Ref *schema.Table
}

func (Table) selectionNode() {}

// Object is an ordered mapping of keys to selections.
// Field order defines projection order.
type Object struct {
	Fields []Field
}

func (Object) selectionNode() {}

// Field is one key of an Object.
type Field struct {
	Key  string
	Node Selection
}

// Obj builds an Object from fields.
func Obj(fields ...Field) Object {
	return Object{Fields: fields}
}

// F builds a Field.
func F(key string, node Selection) Field {
	return Field{Key: key, Node: node}
}

// Col is shorthand for Column{Ref: c}.
func Col(c *schema.Column) Column {
	return Column{Ref: c}
}

// Tbl is shorthand for Table{Ref: t}.
func Tbl(t *schema.Table) Table {
	return Table{Ref: t}
}

// SQL is shorthand for an untyped Expression.
func SQL(sql string, args ...ir.IRValue) Expression {
	return Expression{SQL: sql, Args: args}
}

// Predicate is an opaque filter or join condition.
//
// This is a sealed interface - only types in this package implement it.
// Shape computation only checks that referenced columns resolve; rendering
// is left to querysql.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Equals compares a column to a literal value.
//
//	<column> = ?
type Equals struct {
	Column *schema.Column
	Value  ir.IRValue
}

func (Equals) predicateNode() {}

// ColumnEquals compares two columns; the usual join condition.
//
//	<left> = <right>
type ColumnEquals struct {
	Left  *schema.Column
	Right *schema.Column
}

func (ColumnEquals) predicateNode() {}

// BoundEquals compares a column to a named parameter supplied at execution.
//
//	<column> = ?   -- value looked up by Param
type BoundEquals struct {
	Column *schema.Column
	Param  string
}

func (BoundEquals) predicateNode() {}

// IsNull tests a column for NULL (or NOT NULL when Not is set).
type IsNull struct {
	Column *schema.Column
	Not    bool
}

func (IsNull) predicateNode() {}

// And represents a conjunction. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Raw is a predicate written in SQL.
type Raw struct {
	SQL  string
	Args []ir.IRValue
}

func (Raw) predicateNode() {}

// Eq is shorthand for ColumnEquals.
func Eq(left, right *schema.Column) ColumnEquals {
	return ColumnEquals{Left: left, Right: right}
}

// OrderTerm is one ORDER BY entry. Node must be a Column or Expression.
type OrderTerm struct {
	Node Selection
	Desc bool
}

// Count is a LIMIT or OFFSET value: a literal, or a named parameter bound
// at execution when Param is set.
type Count struct {
	Value int
	Param string
}
