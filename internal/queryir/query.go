package queryir

import (
	"github.com/roach88/qshape/internal/schema"
)

// Query is the full select configuration.
//
// Fields nil means "select whole tables": the anchor alone without joins,
// or every table in the graph keyed by table name once joins exist.
type Query struct {
	Graph   *JoinGraph
	Fields  *Object
	Where   Predicate
	GroupBy []Selection
	OrderBy []OrderTerm
	Limit   *Count
	Offset  *Count

	err error
}

// From starts a query at anchor.
//
// Builder methods record the first error instead of returning it, so calls
// chain; shape.Build reports it before doing any work.
//
//	q := queryir.From(users).
//		LeftJoin(posts, queryir.Eq(users.C("id"), posts.C("user_id"))).
//		Order(queryir.Col(users.C("id")), false)
func From(anchor *schema.Table) *Query {
	return &Query{Graph: NewJoinGraph(anchor)}
}

// Err returns the first error recorded by a builder method.
func (q *Query) Err() error {
	return q.err
}

// Select sets an explicit (partial) field selection.
func (q *Query) Select(obj Object) *Query {
	q.Fields = &obj
	return q
}

// Join appends a join of the given kind.
func (q *Query) Join(kind JoinKind, table *schema.Table, on Predicate) *Query {
	if q.err != nil {
		return q
	}
	if err := q.Graph.AddJoin(table, kind, on); err != nil {
		q.err = err
	}
	return q
}

// InnerJoin appends an inner join.
func (q *Query) InnerJoin(table *schema.Table, on Predicate) *Query {
	return q.Join(JoinInner, table, on)
}

// LeftJoin appends a left join.
func (q *Query) LeftJoin(table *schema.Table, on Predicate) *Query {
	return q.Join(JoinLeft, table, on)
}

// RightJoin appends a right join.
func (q *Query) RightJoin(table *schema.Table, on Predicate) *Query {
	return q.Join(JoinRight, table, on)
}

// FullJoin appends a full join.
func (q *Query) FullJoin(table *schema.Table, on Predicate) *Query {
	return q.Join(JoinFull, table, on)
}

// Filter sets the WHERE predicate.
func (q *Query) Filter(p Predicate) *Query {
	q.Where = p
	return q
}

// Order appends an ORDER BY term.
func (q *Query) Order(node Selection, desc bool) *Query {
	q.OrderBy = append(q.OrderBy, OrderTerm{Node: node, Desc: desc})
	return q
}

// Group appends GROUP BY terms.
func (q *Query) Group(nodes ...Selection) *Query {
	q.GroupBy = append(q.GroupBy, nodes...)
	return q
}

// LimitTo sets a literal LIMIT.
func (q *Query) LimitTo(n int) *Query {
	q.Limit = &Count{Value: n}
	return q
}

// OffsetBy sets a literal OFFSET.
func (q *Query) OffsetBy(n int) *Query {
	q.Offset = &Count{Value: n}
	return q
}
