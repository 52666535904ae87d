package shape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/qshape/internal/queryir"
)

// BuildError is returned by Build when a query cannot produce a result
// schema. No partial Plan is ever returned alongside it.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Table is the table involved, when there is one.
	Table string

	// Path is the selection key path, when the error is in a selection.
	Path []string

	// Err is the underlying error, if any.
	Err error
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeDuplicateAlias indicates a join reused a table name.
	ErrCodeDuplicateAlias BuildErrorCode = "DUPLICATE_ALIAS"

	// ErrCodeUnresolvedTable indicates a reference to a table outside the graph.
	ErrCodeUnresolvedTable BuildErrorCode = "UNRESOLVED_TABLE"

	// ErrCodeAmbiguousSelection indicates a partial-selection group whose
	// columns come from more than one table.
	ErrCodeAmbiguousSelection BuildErrorCode = "AMBIGUOUS_PARTIAL_SELECTION"

	// ErrCodeUnknownColumn indicates a column missing from its table.
	ErrCodeUnknownColumn BuildErrorCode = "UNKNOWN_COLUMN"

	// ErrCodeUnselectableColumn indicates an explicit pick of a hidden column.
	ErrCodeUnselectableColumn BuildErrorCode = "UNSELECTABLE_COLUMN"

	// ErrCodeInvalidSelection covers empty objects, blank or duplicate keys,
	// and nil nodes.
	ErrCodeInvalidSelection BuildErrorCode = "INVALID_SELECTION"

	// ErrCodeInvalidQuery covers a missing anchor and malformed clauses.
	ErrCodeInvalidQuery BuildErrorCode = "INVALID_QUERY"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (path=%s)", strings.Join(e.Path, "."))
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

func newBuildError(code BuildErrorCode, path []string, format string, args ...any) *BuildError {
	return &BuildError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    append([]string(nil), path...),
	}
}

func hasCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsDuplicateAlias reports whether err is a DuplicateAliasError, either
// straight from queryir.JoinGraph.AddJoin or wrapped by Build.
func IsDuplicateAlias(err error) bool {
	var dup *queryir.DuplicateAliasError
	return errors.As(err, &dup) || hasCode(err, ErrCodeDuplicateAlias)
}

// IsUnresolvedTable reports whether err is an UnresolvedTableReferenceError.
func IsUnresolvedTable(err error) bool {
	return hasCode(err, ErrCodeUnresolvedTable)
}

// IsAmbiguousSelection reports whether err is an AmbiguousPartialSelectionError.
func IsAmbiguousSelection(err error) bool {
	return hasCode(err, ErrCodeAmbiguousSelection)
}

// CodeOf returns the BuildErrorCode of err, or "" if err is not a BuildError.
func CodeOf(err error) BuildErrorCode {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// fromReferenceError maps a queryir validation problem to a BuildError.
func fromReferenceError(re *queryir.ReferenceError) *BuildError {
	code := ErrCodeInvalidQuery
	switch re.Problem {
	case queryir.ProblemUnresolvedTable:
		code = ErrCodeUnresolvedTable
	case queryir.ProblemUnknownColumn:
		code = ErrCodeUnknownColumn
	}
	return &BuildError{
		Code:    code,
		Message: re.Error(),
		Table:   re.Table,
		Err:     re,
	}
}
