package shape

import (
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
)

// SelectMode tags how the selection was requested.
type SelectMode string

const (
	// ModeSingle: whole anchor table, no joins. Rows are flat objects.
	ModeSingle SelectMode = "single"

	// ModeMultiple: whole tables with joins. Rows are keyed by table name.
	ModeMultiple SelectMode = "multiple"

	// ModePartial: an explicit nested field mapping.
	ModePartial SelectMode = "partial"
)

// SelectField is one projected item, in projection order. The list of
// SelectFields (SelectFieldsOrdered) is what the SQL renderer emits and what
// every RawRow must align with position by position.
type SelectField struct {
	// Path is the key sequence from the result root to this leaf.
	Path []string

	// Table is the source table tag; empty for expressions.
	Table string

	// Column is set for column leaves.
	Column *schema.Column

	// Expr is set for expression leaves.
	Expr *queryir.Expression
}

// nodeKind distinguishes resolved selection nodes.
type nodeKind int

const (
	kindColumn nodeKind = iota
	kindExpression
	kindTable  // whole table under one key
	kindGroup  // flat object drawn from exactly one table
	kindObject // any other object
)

// resolvedNode is a selection node after reference resolution. Leaves carry
// their position in SelectFieldsOrdered.
type resolvedNode struct {
	kind     nodeKind
	key      string
	table    string // owning table for column, table and group nodes
	column   *schema.Column
	expr     *queryir.Expression
	index    int
	children []*resolvedNode
}

// Selection is the Field Selector's output.
type Selection struct {
	Mode   SelectMode
	Fields []SelectField
	root   *resolvedNode
}

// Resolve turns a query's selection into SelectFieldsOrdered and a mode.
//
//   - Fields nil, no joins: ModeSingle, the anchor's selectable columns
//   - Fields nil, joins:    ModeMultiple, anchor then each joined table, keyed by name
//   - Fields set:           ModePartial, resolved recursively
//
// Every table and column a selection names must be in the graph.
func Resolve(q *queryir.Query) (*Selection, error) {
	r := &resolver{graph: q.Graph}

	if q.Fields == nil {
		if q.Graph.Len() == 0 {
			return r.resolveSingle()
		}
		return r.resolveMultiple()
	}
	return r.resolvePartial(*q.Fields)
}

// resolver accumulates projected fields during traversal.
type resolver struct {
	graph  *queryir.JoinGraph
	fields []SelectField
}

func (r *resolver) addColumn(path []string, col *schema.Column) int {
	r.fields = append(r.fields, SelectField{
		Path:   clonePath(path),
		Table:  col.Table,
		Column: col,
	})
	return len(r.fields) - 1
}

func (r *resolver) addExpression(path []string, expr queryir.Expression) int {
	e := expr
	r.fields = append(r.fields, SelectField{
		Path: clonePath(path),
		Expr: &e,
	})
	return len(r.fields) - 1
}

func (r *resolver) resolveSingle() (*Selection, error) {
	anchor := r.graph.Anchor()
	root, err := r.expandTable(nil, "", anchor)
	if err != nil {
		return nil, err
	}
	return &Selection{Mode: ModeSingle, Fields: r.fields, root: root}, nil
}

func (r *resolver) resolveMultiple() (*Selection, error) {
	root := &resolvedNode{kind: kindObject}

	tables := []*schema.Table{r.graph.Anchor()}
	for _, edge := range r.graph.Edges() {
		tables = append(tables, edge.Table)
	}

	for _, tbl := range tables {
		child, err := r.expandTable([]string{tbl.Name()}, tbl.Name(), tbl)
		if err != nil {
			return nil, err
		}
		root.children = append(root.children, child)
	}
	return &Selection{Mode: ModeMultiple, Fields: r.fields, root: root}, nil
}

func (r *resolver) resolvePartial(obj queryir.Object) (*Selection, error) {
	if len(obj.Fields) == 0 {
		return nil, newBuildError(ErrCodeInvalidSelection, nil, "partial selection has no fields")
	}

	root := &resolvedNode{kind: kindObject}
	children, err := r.resolveFields(nil, obj)
	if err != nil {
		return nil, err
	}
	root.children = children
	return &Selection{Mode: ModePartial, Fields: r.fields, root: root}, nil
}

// expandTable emits a table's selectable columns under path.
func (r *resolver) expandTable(path []string, key string, tbl *schema.Table) (*resolvedNode, error) {
	cols := tbl.SelectableColumns()
	if len(cols) == 0 {
		be := newBuildError(ErrCodeInvalidSelection, path, "table %q has no selectable columns", tbl.Name())
		be.Table = tbl.Name()
		return nil, be
	}

	node := &resolvedNode{kind: kindTable, key: key, table: tbl.Name()}
	for _, col := range cols {
		leafPath := append(clonePath(path), col.Name)
		node.children = append(node.children, &resolvedNode{
			kind:   kindColumn,
			key:    col.Name,
			table:  col.Table,
			column: col,
			index:  r.addColumn(leafPath, col),
		})
	}
	return node, nil
}

// resolveFields resolves an object's fields in order.
func (r *resolver) resolveFields(path []string, obj queryir.Object) ([]*resolvedNode, error) {
	seen := make(map[string]bool, len(obj.Fields))
	children := make([]*resolvedNode, 0, len(obj.Fields))

	for _, f := range obj.Fields {
		if f.Key == "" {
			return nil, newBuildError(ErrCodeInvalidSelection, path, "selection key must not be empty")
		}
		if seen[f.Key] {
			return nil, newBuildError(ErrCodeInvalidSelection, path, "duplicate selection key %q", f.Key)
		}
		seen[f.Key] = true

		child, err := r.resolveNode(append(clonePath(path), f.Key), f.Key, f.Node)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// resolveNode recursively resolves one selection node.
func (r *resolver) resolveNode(path []string, key string, node queryir.Selection) (*resolvedNode, error) {
	switch n := node.(type) {
	case queryir.Column:
		return r.resolveColumn(path, key, n.Ref)
	case *queryir.Column:
		return r.resolveColumn(path, key, n.Ref)
	case queryir.Expression:
		return r.resolveExpression(path, key, n)
	case *queryir.Expression:
		return r.resolveExpression(path, key, *n)
	case queryir.Table:
		return r.resolveTable(path, key, n.Ref)
	case *queryir.Table:
		return r.resolveTable(path, key, n.Ref)
	case queryir.Object:
		return r.resolveObject(path, key, n)
	case *queryir.Object:
		return r.resolveObject(path, key, *n)
	case nil:
		return nil, newBuildError(ErrCodeInvalidSelection, path, "selection node is nil")
	default:
		return nil, newBuildError(ErrCodeInvalidSelection, path, "unsupported selection node %T", node)
	}
}

func (r *resolver) resolveColumn(path []string, key string, col *schema.Column) (*resolvedNode, error) {
	if col == nil {
		return nil, newBuildError(ErrCodeInvalidSelection, path, "column reference is nil")
	}
	tbl, ok := r.graph.Table(col.Table)
	if !ok {
		be := newBuildError(ErrCodeUnresolvedTable, path,
			"column %s references table %q which is not in the query", col.Qualified(), col.Table)
		be.Table = col.Table
		return nil, be
	}
	resolved, ok := tbl.Column(col.Name)
	if !ok {
		be := newBuildError(ErrCodeUnknownColumn, path, "table %q has no column %q", col.Table, col.Name)
		be.Table = col.Table
		return nil, be
	}
	if !resolved.Selectable {
		be := newBuildError(ErrCodeUnselectableColumn, path, "column %s is not selectable", resolved.Qualified())
		be.Table = col.Table
		return nil, be
	}

	return &resolvedNode{
		kind:   kindColumn,
		key:    key,
		table:  resolved.Table,
		column: resolved,
		index:  r.addColumn(path, resolved),
	}, nil
}

func (r *resolver) resolveExpression(path []string, key string, expr queryir.Expression) (*resolvedNode, error) {
	if expr.SQL == "" {
		return nil, newBuildError(ErrCodeInvalidSelection, path, "expression SQL must not be empty")
	}
	return &resolvedNode{
		kind:  kindExpression,
		key:   key,
		expr:  &expr,
		index: r.addExpression(path, expr),
	}, nil
}

func (r *resolver) resolveTable(path []string, key string, ref *schema.Table) (*resolvedNode, error) {
	if ref == nil {
		return nil, newBuildError(ErrCodeInvalidSelection, path, "table reference is nil")
	}
	tbl, ok := r.graph.Table(ref.Name())
	if !ok {
		be := newBuildError(ErrCodeUnresolvedTable, path, "table %q is not in the query", ref.Name())
		be.Table = ref.Name()
		return nil, be
	}
	return r.expandTable(path, key, tbl)
}

// resolveObject resolves a nested object.
//
// The object's direct column leaves are inspected before recursing. Columns
// from more than one table make group nullability undefined and are
// rejected. A flat object (columns and expressions only) whose columns come
// from exactly one table becomes a group that inherits that table's
// nullability. Anything else is a plain object whose leaves stand alone.
func (r *resolver) resolveObject(path []string, key string, obj queryir.Object) (*resolvedNode, error) {
	if len(obj.Fields) == 0 {
		return nil, newBuildError(ErrCodeInvalidSelection, path, "nested selection %q has no fields", key)
	}

	children, err := r.resolveFields(path, obj)
	if err != nil {
		return nil, err
	}

	var tags []string
	flat := true
	for _, c := range children {
		switch c.kind {
		case kindColumn:
			if !containsString(tags, c.table) {
				tags = append(tags, c.table)
			}
		case kindExpression:
		default:
			flat = false
		}
	}

	if len(tags) > 1 {
		be := newBuildError(ErrCodeAmbiguousSelection, path,
			"nested selection %q mixes columns from tables %v; nullability cannot be assigned to the group", key, tags)
		be.Table = tags[0]
		return nil, be
	}

	node := &resolvedNode{kind: kindObject, key: key, children: children}
	if flat && len(tags) == 1 {
		node.kind = kindGroup
		node.table = tags[0]
	}
	return node, nil
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
