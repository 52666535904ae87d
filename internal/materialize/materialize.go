package materialize

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/shape"
)

// Options controls batch materialization.
type Options struct {
	// Workers is the number of goroutines used by Rows. Values below 1
	// mean one.
	Workers int

	// ContinueOnError keeps processing after a failing row. Failing rows
	// yield nil in the result and their errors are joined.
	ContinueOnError bool
}

// Row materializes one RawRow.
func Row(rs *shape.ResultSchema, raw []ir.IRValue) (ir.IRValue, error) {
	return row(rs, 0, raw)
}

func row(rs *shape.ResultSchema, index int, raw []ir.IRValue) (ir.IRValue, error) {
	if rs == nil || rs.Root == nil {
		return nil, fmt.Errorf("row %d: result schema is nil", index)
	}
	if len(raw) != rs.Width {
		return nil, &RowShapeError{Row: index, Expected: rs.Width, Got: len(raw)}
	}
	return group(rs.Root, raw), nil
}

// group builds one object. Table-rooted groups apply their nullability:
//
//	null      → null, positions still consumed
//	nullable  → null if every value in [Start, End) is null
//	not-null  → always an object
func group(g *shape.Group, raw []ir.IRValue) ir.IRValue {
	if g.TableRooted() {
		switch g.Nullability {
		case shape.Null:
			return ir.IRNull{}
		case shape.Nullable:
			if allNull(raw[g.Start:g.End]) {
				return ir.IRNull{}
			}
		}
	}

	obj := make(ir.IRObject, len(g.Children))
	for _, child := range g.Children {
		switch n := child.(type) {
		case *shape.Leaf:
			obj[n.Key] = cell(raw[n.Index])
		case *shape.Group:
			obj[n.Key] = group(n, raw)
		}
	}
	return obj
}

func allNull(values []ir.IRValue) bool {
	for _, v := range values {
		if !ir.IsNull(v) {
			return false
		}
	}
	return true
}

// cell normalizes a Go nil to IRNull so results never hold nil interfaces.
func cell(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return v
}

// Rows materializes a batch. Output order matches input order regardless
// of Workers.
//
// Without ContinueOnError a failing row stops the batch and its error is
// returned with no results; with one worker that is always the first
// failing row. With ContinueOnError every row is attempted, failing rows
// are nil in the result, and the returned error joins all row errors.
func Rows(ctx context.Context, rs *shape.ResultSchema, rows [][]ir.IRValue, opts Options) ([]ir.IRValue, error) {
	out := make([]ir.IRValue, len(rows))
	errs := make([]error, len(rows))

	workers := min(max(opts.Workers, 1), len(rows))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := row(rs, i, rows[i])
				if err != nil {
					errs[i] = err
					if !opts.ContinueOnError {
						cancel()
					}
					continue
				}
				out[i] = v
			}
		}()
	}

feed:
	for i := range rows {
		select {
		case <-runCtx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("materialize rows: %w", err)
	}

	if opts.ContinueOnError {
		return out, errors.Join(errs...)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
