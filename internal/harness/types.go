package harness

import (
	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/shape"
)

// ErrCodeRowShape is recorded when a scenario's rows disagree with the
// result schema's width.
const ErrCodeRowShape = "ROW_SHAPE_MISMATCH"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Mode and Nullability describe the built plan. Empty when the build
	// failed.
	Mode        string            `json:"mode,omitempty"`
	Nullability map[string]string `json:"nullability,omitempty"`

	// SQL is the statement compiled for SQLite.
	SQL string `json:"sql,omitempty"`

	// Rows are the materialized results in input order.
	Rows []ir.IRValue `json:"rows"`

	// ErrorCode and Error capture a build or materialization failure.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	schema *shape.ResultSchema
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Nullability: make(map[string]string),
		Rows:        []ir.IRValue{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Schema is the composed result schema, nil when the build failed.
func (r *Result) Schema() *shape.ResultSchema {
	return r.schema
}
