package shape

import (
	"fmt"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/schema"
)

// Node is a sealed interface over result schema nodes.
// Only *Leaf and *Group implement it.
type Node interface {
	resultNode() // Sealed - only these types implement it
}

// Leaf is one terminal value, read from position Index of a RawRow.
type Leaf struct {
	Key      string
	Index    int
	Type     schema.ValueType
	Nullable bool

	// Table and Column are empty for expression leaves.
	Table  string
	Column string
}

func (*Leaf) resultNode() {}

// Group is an object in the result. A group with a Table is table-rooted:
// it takes that table's nullability as a unit and owns the contiguous leaf
// positions [Start, End).
type Group struct {
	Key         string
	Table       string
	Nullability Nullability
	Children    []Node
	Start       int
	End         int
}

func (*Group) resultNode() {}

// TableRooted reports whether the group inherits a table's nullability.
func (g *Group) TableRooted() bool {
	return g.Table != ""
}

// ResultSchema is the resolved shape every row of a query takes. It is
// immutable once composed and safe to share across goroutines.
type ResultSchema struct {
	Mode  SelectMode
	Root  *Group
	Width int
}

// LeafCount is the number of positions a RawRow must have.
func (rs *ResultSchema) LeafCount() int {
	return rs.Width
}

// Compose combines a Selection with a NullabilityMap into a ResultSchema.
//
// Table-rooted subtrees (whole tables, and flat objects drawn from one table)
// take the table's entry in nm. Column leaves are nullable if the column is
// declared nullable or its table is not NotNull. Expression leaves are opaque
// and reported not nullable. In single mode join nullability does not apply.
func Compose(sel *Selection, nm NullabilityMap) (*ResultSchema, error) {
	if sel == nil || sel.root == nil {
		return nil, newBuildError(ErrCodeInvalidSelection, nil, "selection is empty")
	}

	c := &composer{mode: sel.Mode, nm: nm}
	root, err := c.group(sel.root, nil)
	if err != nil {
		return nil, err
	}
	if sel.Mode == ModeSingle {
		root.Nullability = NotNull
	}

	if c.next != len(sel.Fields) {
		return nil, newBuildError(ErrCodeInvalidSelection, nil,
			"result schema has %d leaves but selection projects %d fields", c.next, len(sel.Fields))
	}

	return &ResultSchema{Mode: sel.Mode, Root: root, Width: c.next}, nil
}

type composer struct {
	mode SelectMode
	nm   NullabilityMap
	next int // expected index of the next leaf
}

func (c *composer) group(n *resolvedNode, path []string) (*Group, error) {
	g := &Group{Key: n.key, Nullability: NotNull, Start: c.next}

	if n.kind == kindTable || n.kind == kindGroup {
		nullability, ok := c.nm[n.table]
		if !ok {
			be := newBuildError(ErrCodeUnresolvedTable, path, "no nullability recorded for table %q", n.table)
			be.Table = n.table
			return nil, be
		}
		g.Table = n.table
		g.Nullability = nullability
	}

	for _, child := range n.children {
		childPath := append(clonePath(path), child.key)

		switch child.kind {
		case kindColumn, kindExpression:
			leaf, err := c.leaf(child, childPath)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, leaf)
		default:
			sub, err := c.group(child, childPath)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, sub)
		}
	}

	g.End = c.next
	return g, nil
}

func (c *composer) leaf(n *resolvedNode, path []string) (*Leaf, error) {
	if n.index != c.next {
		return nil, newBuildError(ErrCodeInvalidSelection, path,
			"leaf at position %d is out of projection order (want %d)", n.index, c.next)
	}
	c.next++

	if n.kind == kindExpression {
		typ := n.expr.Type
		if typ == "" {
			typ = schema.TypeUnknown
		}
		return &Leaf{Key: n.key, Index: n.index, Type: typ}, nil
	}

	nullable := !n.column.NotNull
	if c.mode != ModeSingle {
		tableNullability, ok := c.nm[n.table]
		if !ok {
			be := newBuildError(ErrCodeUnresolvedTable, path, "no nullability recorded for table %q", n.table)
			be.Table = n.table
			return nil, be
		}
		nullable = nullable || tableNullability != NotNull
	}

	return &Leaf{
		Key:      n.key,
		Index:    n.index,
		Type:     n.column.Type,
		Nullable: nullable,
		Table:    n.table,
		Column:   n.column.Name,
	}, nil
}

// Describe renders the schema as an IR value for display and fingerprinting.
func (rs *ResultSchema) Describe() ir.IRValue {
	return ir.NewIRObjectFromPairs(
		ir.O("mode", ir.IRString(rs.Mode)),
		ir.O("width", ir.IRInt(rs.Width)),
		ir.O("root", describeNode(rs.Root)),
	)
}

func describeNode(n Node) ir.IRValue {
	switch node := n.(type) {
	case *Leaf:
		obj := ir.NewIRObjectFromPairs(
			ir.O("kind", ir.IRString("leaf")),
			ir.O("key", ir.IRString(node.Key)),
			ir.O("index", ir.IRInt(node.Index)),
			ir.O("type", ir.IRString(node.Type)),
			ir.O("nullable", ir.IRBool(node.Nullable)),
		)
		if node.Table != "" {
			obj["table"] = ir.IRString(node.Table)
			obj["column"] = ir.IRString(node.Column)
		}
		return obj
	case *Group:
		children := make(ir.IRArray, len(node.Children))
		for i, child := range node.Children {
			children[i] = describeNode(child)
		}
		obj := ir.NewIRObjectFromPairs(
			ir.O("kind", ir.IRString("group")),
			ir.O("key", ir.IRString(node.Key)),
			ir.O("nullability", ir.IRString(node.Nullability)),
			ir.O("children", children),
		)
		if node.Table != "" {
			obj["table"] = ir.IRString(node.Table)
		}
		return obj
	default:
		return ir.IRString(fmt.Sprintf("unknown node %T", n))
	}
}
