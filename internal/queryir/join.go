package queryir

import (
	"fmt"

	"github.com/roach88/qshape/internal/schema"
)

// JoinKind determines how unmatched rows on either side are represented.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinRight JoinKind = "right"
	JoinFull  JoinKind = "full"
)

// ValidJoinKinds defines allowed join kinds.
var ValidJoinKinds = map[JoinKind]bool{
	JoinInner: true,
	JoinLeft:  true,
	JoinRight: true,
	JoinFull:  true,
}

// SQL returns the join keyword.
func (k JoinKind) SQL() string {
	switch k {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	default:
		return "UNKNOWN JOIN"
	}
}

// JoinEdge is one join in insertion order.
type JoinEdge struct {
	Table *schema.Table
	Kind  JoinKind
	On    Predicate
}

// DuplicateAliasError is returned when a join introduces a table name
// already present in the graph (the anchor or a previous join).
type DuplicateAliasError struct {
	Table string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("table %q is already part of the query; alias it with Table.As to join it again", e.Table)
}

// JoinGraph is the anchor table plus an append-only sequence of joins.
type JoinGraph struct {
	anchor *schema.Table
	edges  []JoinEdge
	tables map[string]*schema.Table
}

// NewJoinGraph starts a graph at anchor.
func NewJoinGraph(anchor *schema.Table) *JoinGraph {
	g := &JoinGraph{
		anchor: anchor,
		tables: make(map[string]*schema.Table),
	}
	if anchor != nil {
		g.tables[anchor.Name()] = anchor
	}
	return g
}

// AddJoin appends a join edge.
//
// Returns *DuplicateAliasError if table's name is already in the graph.
// Order matters: nullability propagates across edges in insertion order.
func (g *JoinGraph) AddJoin(table *schema.Table, kind JoinKind, on Predicate) error {
	if table == nil {
		return fmt.Errorf("join table is required")
	}
	if !ValidJoinKinds[kind] {
		return fmt.Errorf("invalid join kind %q for table %q", kind, table.Name())
	}
	if _, exists := g.tables[table.Name()]; exists {
		return &DuplicateAliasError{Table: table.Name()}
	}

	g.edges = append(g.edges, JoinEdge{Table: table, Kind: kind, On: on})
	g.tables[table.Name()] = table
	return nil
}

// Anchor returns the table the query starts from.
func (g *JoinGraph) Anchor() *schema.Table {
	return g.anchor
}

// Edges returns the joins in insertion order.
func (g *JoinGraph) Edges() []JoinEdge {
	out := make([]JoinEdge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of joins (the anchor is not counted).
func (g *JoinGraph) Len() int {
	return len(g.edges)
}

// Table resolves a table name against the anchor and joins.
func (g *JoinGraph) Table(name string) (*schema.Table, bool) {
	t, ok := g.tables[name]
	return t, ok
}

// TableNames returns the anchor followed by joined tables, in order.
func (g *JoinGraph) TableNames() []string {
	names := make([]string, 0, len(g.edges)+1)
	if g.anchor != nil {
		names = append(names, g.anchor.Name())
	}
	for _, e := range g.edges {
		names = append(names, e.Table.Name())
	}
	return names
}
