package queryir

import (
	"fmt"

	"github.com/roach88/qshape/internal/schema"
)

// ReferenceProblem categorizes an unresolved reference.
type ReferenceProblem string

const (
	// ProblemUnresolvedTable means a column names a table that is neither
	// the anchor nor joined (or not yet joined, for ON clauses).
	ProblemUnresolvedTable ReferenceProblem = "unresolved_table"

	// ProblemUnknownColumn means the table resolves but has no such column.
	ProblemUnknownColumn ReferenceProblem = "unknown_column"

	// ProblemInvalidClause covers malformed pass-through clauses.
	ProblemInvalidClause ReferenceProblem = "invalid_clause"
)

// ReferenceError describes one problem found by Validate.
type ReferenceError struct {
	Problem ReferenceProblem
	Clause  string // "where", "join posts", "order by", ...
	Table   string
	Column  string
	Message string
}

func (e *ReferenceError) Error() string {
	switch e.Problem {
	case ProblemUnresolvedTable:
		return fmt.Sprintf("%s: column %s.%s references table %q which is not in the query", e.Clause, e.Table, e.Column, e.Table)
	case ProblemUnknownColumn:
		return fmt.Sprintf("%s: table %q has no column %q", e.Clause, e.Table, e.Column)
	default:
		return fmt.Sprintf("%s: %s", e.Clause, e.Message)
	}
}

// ValidationResult lists every reference problem in a query's pass-through
// clauses (join conditions, where, group by, order by, limit, offset).
//
// Field selections are resolved by shape.Build, which reports its own
// errors; Validate does not walk Query.Fields.
type ValidationResult struct {
	Valid    bool
	Problems []*ReferenceError
}

// Validate checks that every column referenced by a clause belongs to a
// table visible at that point. Join conditions may only reference the
// anchor and tables joined up to and including their own edge.
//
// Validate is a pure function with no side effects.
func Validate(q *Query) ValidationResult {
	v := &validator{}

	if q == nil || q.Graph == nil || q.Graph.Anchor() == nil {
		v.addInvalid("from", "query has no anchor table")
		return v.result()
	}

	visible := map[string]*schema.Table{q.Graph.Anchor().Name(): q.Graph.Anchor()}
	for _, edge := range q.Graph.Edges() {
		visible[edge.Table.Name()] = edge.Table
		v.validatePredicate("join "+edge.Table.Name(), edge.On, visible)
	}

	v.validatePredicate("where", q.Where, visible)

	for _, node := range q.GroupBy {
		v.validateTerm("group by", node, visible)
	}
	for _, term := range q.OrderBy {
		v.validateTerm("order by", term.Node, visible)
	}

	v.validateCount("limit", q.Limit)
	v.validateCount("offset", q.Offset)

	return v.result()
}

// validator accumulates problems during traversal.
type validator struct {
	problems []*ReferenceError
}

func (v *validator) result() ValidationResult {
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

func (v *validator) addInvalid(clause, format string, args ...any) {
	v.problems = append(v.problems, &ReferenceError{
		Problem: ProblemInvalidClause,
		Clause:  clause,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) validateColumn(clause string, col *schema.Column, visible map[string]*schema.Table) {
	if col == nil {
		v.addInvalid(clause, "nil column reference")
		return
	}
	tbl, ok := visible[col.Table]
	if !ok {
		v.problems = append(v.problems, &ReferenceError{
			Problem: ProblemUnresolvedTable,
			Clause:  clause,
			Table:   col.Table,
			Column:  col.Name,
		})
		return
	}
	if _, ok := tbl.Column(col.Name); !ok {
		v.problems = append(v.problems, &ReferenceError{
			Problem: ProblemUnknownColumn,
			Clause:  clause,
			Table:   col.Table,
			Column:  col.Name,
		})
	}
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(clause string, p Predicate, visible map[string]*schema.Table) {
	if p == nil {
		return // nil predicates are valid (no filter / cross join)
	}

	switch pred := p.(type) {
	case Equals:
		v.validateColumn(clause, pred.Column, visible)
	case *Equals:
		v.validateColumn(clause, pred.Column, visible)
	case ColumnEquals:
		v.validateColumn(clause, pred.Left, visible)
		v.validateColumn(clause, pred.Right, visible)
	case *ColumnEquals:
		v.validateColumn(clause, pred.Left, visible)
		v.validateColumn(clause, pred.Right, visible)
	case BoundEquals:
		v.validateBound(clause, pred, visible)
	case *BoundEquals:
		v.validateBound(clause, *pred, visible)
	case IsNull:
		v.validateColumn(clause, pred.Column, visible)
	case *IsNull:
		v.validateColumn(clause, pred.Column, visible)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(clause, sub, visible)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(clause, sub, visible)
		}
	case Raw, *Raw:
		// Opaque SQL; references are the renderer's problem
	default:
		v.addInvalid(clause, "unknown predicate type %T", p)
	}
}

func (v *validator) validateBound(clause string, pred BoundEquals, visible map[string]*schema.Table) {
	v.validateColumn(clause, pred.Column, visible)
	if pred.Param == "" {
		v.addInvalid(clause, "bound parameter name is required")
	}
}

// validateTerm checks a GROUP BY / ORDER BY node: a column or expression.
func (v *validator) validateTerm(clause string, node Selection, visible map[string]*schema.Table) {
	switch n := node.(type) {
	case Column:
		v.validateColumn(clause, n.Ref, visible)
	case *Column:
		v.validateColumn(clause, n.Ref, visible)
	case Expression, *Expression:
	default:
		v.addInvalid(clause, "term must be a column or expression, got %T", node)
	}
}

func (v *validator) validateCount(clause string, c *Count) {
	if c == nil || c.Param != "" {
		return
	}
	if c.Value < 0 {
		v.addInvalid(clause, "must not be negative, got %d", c.Value)
	}
}
