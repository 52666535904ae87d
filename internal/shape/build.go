package shape

import (
	"errors"
	"strings"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/queryir"
)

// Plan is everything computed once per query: the projection the SQL
// renderer emits, per-table nullability, and the result schema the row
// materializer applies to every row.
type Plan struct {
	Query       *queryir.Query
	Mode        SelectMode
	Fields      []SelectField
	Nullability NullabilityMap
	Schema      *ResultSchema
}

// Build validates q and computes its Plan.
//
// Steps run in order and stop at the first error:
//  1. builder errors recorded on q (DuplicateAliasError)
//  2. reference validation of joins and clauses
//  3. nullability propagation
//  4. field selection
//  5. result schema composition
//
// Build is pure; independent queries can be built concurrently.
func Build(q *queryir.Query) (*Plan, error) {
	if q == nil || q.Graph == nil || q.Graph.Anchor() == nil {
		return nil, newBuildError(ErrCodeInvalidQuery, nil, "query has no anchor table")
	}

	if err := q.Err(); err != nil {
		var dup *queryir.DuplicateAliasError
		if errors.As(err, &dup) {
			return nil, &BuildError{
				Code:    ErrCodeDuplicateAlias,
				Message: dup.Error(),
				Table:   dup.Table,
				Err:     err,
			}
		}
		return nil, &BuildError{Code: ErrCodeInvalidQuery, Message: err.Error(), Err: err}
	}

	if result := queryir.Validate(q); !result.Valid {
		return nil, fromReferenceError(result.Problems[0])
	}

	nm := Propagate(q.Graph.Anchor().Name(), q.Graph.Edges())

	sel, err := Resolve(q)
	if err != nil {
		return nil, err
	}

	rs, err := Compose(sel, nm)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Query:       q,
		Mode:        sel.Mode,
		Fields:      sel.Fields,
		Nullability: nm,
		Schema:      rs,
	}, nil
}

// Describe renders the plan's shape (not its SQL) as an IR value.
func (p *Plan) Describe() ir.IRValue {
	nullability := make(ir.IRObject, len(p.Nullability))
	for name, n := range p.Nullability {
		nullability[name] = ir.IRString(n)
	}

	fields := make(ir.IRArray, len(p.Fields))
	for i, f := range p.Fields {
		field := ir.NewIRObjectFromPairs(
			ir.O("path", ir.IRString(strings.Join(f.Path, "."))),
		)
		switch {
		case f.Column != nil:
			field["table"] = ir.IRString(f.Table)
			field["column"] = ir.IRString(f.Column.Name)
		case f.Expr != nil:
			field["sql"] = ir.IRString(f.Expr.SQL)
		}
		fields[i] = field
	}

	return ir.NewIRObjectFromPairs(
		ir.O("mode", ir.IRString(p.Mode)),
		ir.O("nullability", nullability),
		ir.O("fields", fields),
		ir.O("schema", p.Schema.Describe()),
	)
}

// Fingerprint is a content hash of the plan's shape. Two queries with the
// same projection, nullability and result schema share a fingerprint.
func (p *Plan) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainResultSchema, p.Describe())
}
