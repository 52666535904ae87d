package schema

import (
	"fmt"
)

// ValueType is the declared type of a column or expression.
type ValueType string

const (
	TypeUnknown   ValueType = "unknown"
	TypeInteger   ValueType = "integer"
	TypeReal      ValueType = "real"
	TypeText      ValueType = "text"
	TypeBoolean   ValueType = "boolean"
	TypeJSON      ValueType = "json"
	TypeTimestamp ValueType = "timestamp"
	TypeBlob      ValueType = "blob"
)

// ValidValueTypes lists the types a schema may declare.
var ValidValueTypes = map[ValueType]bool{
	TypeInteger:   true,
	TypeReal:      true,
	TypeText:      true,
	TypeBoolean:   true,
	TypeJSON:      true,
	TypeTimestamp: true,
	TypeBlob:      true,
}

// Column describes one column of a table.
type Column struct {
	Name  string
	Table string // name of the owning table (or its alias)
	Type  ValueType

	// NotNull is the schema-declared constraint, independent of joins.
	NotNull bool

	// Selectable columns are included when a whole table is selected.
	Selectable bool
}

// Qualified returns "table.column".
func (c *Column) Qualified() string {
	return c.Table + "." + c.Name
}

// ColumnDef is the input used to declare a column on NewTable.
type ColumnDef struct {
	Name    string
	Type    ValueType
	NotNull bool
	Hidden  bool // excluded from whole-table selection
}

// Table is immutable metadata for one table.
type Table struct {
	name    string
	base    string
	columns []*Column
	byName  map[string]*Column
}

// NewTable builds a Table. Column order is declaration order.
func NewTable(name string, defs ...ColumnDef) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("table %q: at least one column is required", name)
	}

	t := &Table{
		name:    name,
		base:    name,
		columns: make([]*Column, 0, len(defs)),
		byName:  make(map[string]*Column, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("table %q: column name is required", name)
		}
		if _, dup := t.byName[def.Name]; dup {
			return nil, fmt.Errorf("table %q: duplicate column %q", name, def.Name)
		}
		typ := def.Type
		if typ == "" {
			typ = TypeUnknown
		} else if !ValidValueTypes[typ] {
			return nil, fmt.Errorf("table %q: column %q: invalid type %q", name, def.Name, typ)
		}
		col := &Column{
			Name:       def.Name,
			Table:      name,
			Type:       typ,
			NotNull:    def.NotNull,
			Selectable: !def.Hidden,
		}
		t.columns = append(t.columns, col)
		t.byName[col.Name] = col
	}
	return t, nil
}

// MustTable is NewTable that panics on error. Intended for fixtures.
func MustTable(name string, defs ...ColumnDef) *Table {
	t, err := NewTable(name, defs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name as referenced in queries (the alias, if any).
func (t *Table) Name() string { return t.name }

// BaseName returns the underlying table name. Equal to Name unless aliased.
func (t *Table) BaseName() string { return t.base }

// IsAlias reports whether t was produced by As.
func (t *Table) IsAlias() bool { return t.name != t.base }

// Columns returns all columns in declaration order.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// SelectableColumns returns the columns a whole-table selection expands to.
func (t *Table) SelectableColumns() []*Column {
	out := make([]*Column, 0, len(t.columns))
	for _, c := range t.columns {
		if c.Selectable {
			out = append(out, c)
		}
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// C returns the named column and panics if it does not exist.
// Intended for building queries in code where the schema is static.
func (t *Table) C(name string) *Column {
	c, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("table %q has no column %q", t.name, name))
	}
	return c
}

// As returns a copy of t referenced under alias. Every column of the copy
// has Table set to alias, so selections and nullability key off the alias.
func (t *Table) As(alias string) *Table {
	a := &Table{
		name:    alias,
		base:    t.base,
		columns: make([]*Column, 0, len(t.columns)),
		byName:  make(map[string]*Column, len(t.columns)),
	}
	for _, c := range t.columns {
		cc := *c
		cc.Table = alias
		a.columns = append(a.columns, &cc)
		a.byName[cc.Name] = &cc
	}
	return a
}
