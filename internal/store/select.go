package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/materialize"
	"github.com/roach88/qshape/internal/querysql"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
)

// SelectOptions tune a single Select call.
type SelectOptions struct {
	// Params supplies values for bound predicates and parameterized
	// LIMIT/OFFSET, keyed by parameter name.
	Params map[string]any

	// Workers and ContinueOnError are passed to materialize.Rows.
	Workers         int
	ContinueOnError bool
}

// Result is a materialized batch plus the statement that produced it.
type Result struct {
	RunID  string
	SQL    string
	Params []any
	Rows   []ir.IRValue
}

// Select compiles plan for the store's dialect, runs it, and materializes
// every returned row.
//
// A result set whose column count disagrees with the plan's projection is a
// *materialize.RowShapeError. With ContinueOnError the partial Result is
// returned alongside the joined row errors.
func (s *Store) Select(ctx context.Context, plan *shape.Plan, opts SelectOptions) (*Result, error) {
	if plan == nil || plan.Schema == nil {
		return nil, fmt.Errorf("select: plan is nil")
	}

	compiler := querysql.NewSQLCompiler(s.dialect)
	for name, v := range opts.Params {
		compiler.BoundValues[name] = v
	}
	query, params, err := compiler.Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("select: compile: %w", err)
	}

	result := &Result{RunID: uuid.NewString(), SQL: query, Params: params}
	logger := s.logger.With("run_id", result.RunID, "dialect", string(s.dialect))
	start := time.Now()

	raws, err := s.scan(ctx, plan, query, params)
	if err != nil {
		logger.Error("query failed", "error", err)
		return nil, err
	}

	rows, err := materialize.Rows(ctx, plan.Schema, raws, materialize.Options{
		Workers:         opts.Workers,
		ContinueOnError: opts.ContinueOnError,
	})
	logger.Debug("query materialized",
		"mode", string(plan.Mode),
		"rows", len(raws),
		"duration", time.Since(start))
	if err != nil && rows == nil {
		return nil, err
	}

	result.Rows = rows
	return result, err
}

// scan runs the statement and reads every row into a RawRow.
func (s *Store) scan(ctx context.Context, plan *shape.Plan, query string, params []any) ([][]ir.IRValue, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select: columns: %w", err)
	}
	if len(columns) != plan.Schema.Width {
		return nil, &materialize.RowShapeError{Row: 0, Expected: plan.Schema.Width, Got: len(columns)}
	}

	types := fieldTypes(plan.Fields)

	var raws [][]ir.IRValue
	for rows.Next() {
		cells := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("select: scan row %d: %w", len(raws), err)
		}

		raw, err := toRawRow(types, cells)
		if err != nil {
			return nil, fmt.Errorf("select: row %d: %w", len(raws), err)
		}
		raws = append(raws, raw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select: iterate rows: %w", err)
	}

	return raws, nil
}

func fieldTypes(fields []shape.SelectField) []schema.ValueType {
	types := make([]schema.ValueType, len(fields))
	for i, f := range fields {
		switch {
		case f.Column != nil:
			types[i] = f.Column.Type
		case f.Expr != nil && f.Expr.Type != "":
			types[i] = f.Expr.Type
		default:
			types[i] = schema.TypeUnknown
		}
	}
	return types
}

func toRawRow(types []schema.ValueType, cells []any) ([]ir.IRValue, error) {
	raw := make([]ir.IRValue, len(cells))
	for i, c := range cells {
		typ := schema.TypeUnknown
		if i < len(types) {
			typ = types[i]
		}
		v, err := coerce(typ, c)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		raw[i] = v
	}
	return raw, nil
}

