package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/qshape/internal/compiler"
	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/materialize"
	"github.com/roach88/qshape/internal/querysql"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
	"github.com/roach88/qshape/internal/store"
)

// Harness is the test execution engine.
// It runs one scenario against an isolated catalog and, when the scenario
// has setup SQL, a fresh in-memory SQLite database.
type Harness struct {
	scenario *Scenario
	catalog  *schema.Catalog
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Compile the CUE schema into a catalog
// 2. Compile the query definition
// 3. Build the plan; a build error is recorded on the result
// 4. Materialize the scenario rows, or run the query against SQLite
// 5. Evaluate assertions
//
// The returned error is reserved for scenarios that cannot run at all
// (bad schema, bad query definition, failing setup SQL).
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	catalog, err := loadCatalog(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		catalog:  catalog,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	if err := h.execute(ctx, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	if result.ErrorCode != "" && !scenario.expectsError() {
		result.AddError(fmt.Sprintf("unexpected error [%s]: %s", result.ErrorCode, result.Error))
	}

	return result, nil
}

func loadCatalog(s *Scenario) (*schema.Catalog, error) {
	if s.SchemaFile != "" {
		return compiler.LoadTablesFile(s.SchemaFile)
	}
	return compiler.CompileTablesSource(s.Name+".cue", []byte(s.Schema))
}

func (h *Harness) execute(ctx context.Context, result *Result) error {
	q, err := compiler.CompileQuery(&h.scenario.Query, h.catalog)
	if err != nil {
		return fmt.Errorf("failed to compile query: %w", err)
	}

	plan, err := shape.Build(q)
	if err != nil {
		result.ErrorCode = string(shape.CodeOf(err))
		result.Error = err.Error()
		h.logger.Info("build failed", "scenario", h.scenario.Name, "code", result.ErrorCode)
		return nil
	}

	result.Mode = string(plan.Mode)
	for table, n := range plan.Nullability {
		result.Nullability[table] = string(n)
	}
	result.schema = plan.Schema

	sc := querysql.NewSQLCompiler(querysql.DialectSQLite)
	for name, v := range h.scenario.Params {
		sc.BoundValues[name] = v
	}
	if sql, _, err := sc.Compile(plan); err == nil {
		result.SQL = sql
	}

	var rows []ir.IRValue
	if h.scenario.Setup != "" {
		rows, err = h.executeSQL(ctx, plan)
	} else {
		rows, err = h.materialize(ctx, plan)
	}
	if err != nil && rows == nil && !materialize.IsRowShapeMismatch(err) {
		return err
	}

	if err != nil {
		result.ErrorCode = ErrCodeRowShape
		result.Error = err.Error()
	}
	if rows != nil {
		result.Rows = rows
	}

	h.logger.Info("scenario executed",
		"scenario", h.scenario.Name,
		"mode", result.Mode,
		"rows", len(result.Rows),
	)
	return nil
}

// materialize converts the scenario's literal rows and materializes them.
func (h *Harness) materialize(ctx context.Context, plan *shape.Plan) ([]ir.IRValue, error) {
	raws := make([][]ir.IRValue, len(h.scenario.Rows))
	for i, row := range h.scenario.Rows {
		raw := make([]ir.IRValue, len(row))
		for j, cell := range row {
			v, err := ir.FromAny(cell)
			if err != nil {
				return nil, fmt.Errorf("rows[%d][%d]: %w", i, j, err)
			}
			raw[j] = v
		}
		raws[i] = raw
	}

	return materialize.Rows(ctx, plan.Schema, raws, materialize.Options{
		Workers:         h.scenario.Workers,
		ContinueOnError: h.scenario.ContinueOnError,
	})
}

// executeSQL runs setup and the query in a fresh in-memory SQLite database.
func (h *Harness) executeSQL(ctx context.Context, plan *shape.Plan) ([]ir.IRValue, error) {
	st, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	st = st.WithLogger(h.logger)

	if err := st.Exec(ctx, h.scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	res, err := st.Select(ctx, plan, store.SelectOptions{
		Params:          h.scenario.Params,
		Workers:         h.scenario.Workers,
		ContinueOnError: h.scenario.ContinueOnError,
	})
	if res == nil {
		return nil, err
	}
	return res.Rows, err
}
