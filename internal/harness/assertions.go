package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/shape"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Rows     []ir.IRValue
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nMaterialized rows:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, canonicalString(row))
		}
	}

	return buf.String()
}

func assertMode(result *Result, a Assertion) error {
	if result.Mode == a.Mode {
		return nil
	}
	return &AssertionError{
		Type:     AssertMode,
		Expected: a.Mode,
		Actual:   orNone(result.Mode),
	}
}

// assertNullability checks each listed table (subset semantics).
func assertNullability(result *Result, a Assertion) error {
	tables := make([]string, 0, len(a.Nullability))
	for table := range a.Nullability {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		want := a.Nullability[table]
		got, ok := result.Nullability[table]
		if !ok || got != want {
			return &AssertionError{
				Type:     AssertNullability,
				Expected: fmt.Sprintf("%s is %s", table, want),
				Actual:   fmt.Sprintf("%s is %s", table, orNone(got)),
			}
		}
	}
	return nil
}

func assertFieldNullable(result *Result, a Assertion) error {
	if result.schema == nil {
		return &AssertionError{
			Type:     AssertFieldNullable,
			Expected: fmt.Sprintf("leaf %s", a.Path),
			Actual:   "no result schema",
		}
	}

	leaf := findLeaf(result.schema.Root, strings.Split(a.Path, "."))
	if leaf == nil {
		return &AssertionError{
			Type:     AssertFieldNullable,
			Expected: fmt.Sprintf("leaf %s", a.Path),
			Actual:   "leaf not found",
		}
	}
	if leaf.Nullable != *a.Nullable {
		return &AssertionError{
			Type:     AssertFieldNullable,
			Expected: fmt.Sprintf("%s nullable=%t", a.Path, *a.Nullable),
			Actual:   fmt.Sprintf("%s nullable=%t", a.Path, leaf.Nullable),
		}
	}
	return nil
}

// findLeaf walks groups by key.
func findLeaf(g *shape.Group, path []string) *shape.Leaf {
	if g == nil || len(path) == 0 {
		return nil
	}
	for _, child := range g.Children {
		switch node := child.(type) {
		case *shape.Leaf:
			if len(path) == 1 && node.Key == path[0] {
				return node
			}
		case *shape.Group:
			if len(path) > 1 && node.Key == path[0] {
				return findLeaf(node, path[1:])
			}
		}
	}
	return nil
}

// assertResults compares every row as canonical JSON so that integer and
// key-order differences between YAML and IR never matter.
func assertResults(result *Result, a Assertion) error {
	want, err := ir.MarshalCanonical(a.Rows)
	if err != nil {
		return fmt.Errorf("results: expected rows: %w", err)
	}
	got, err := ir.MarshalCanonical(ir.IRArray(result.Rows))
	if err != nil {
		return fmt.Errorf("results: materialized rows: %w", err)
	}
	if string(want) == string(got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertResults,
		Expected: string(want),
		Actual:   string(got),
		Rows:     result.Rows,
	}
}

func assertRowCount(result *Result, a Assertion) error {
	if len(result.Rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(result.Rows)),
		Rows:     result.Rows,
	}
}

func assertSQL(result *Result, a Assertion) error {
	if result.SQL == a.SQL {
		return nil
	}
	return &AssertionError{
		Type:     AssertSQL,
		Expected: a.SQL,
		Actual:   orNone(result.SQL),
	}
}

func assertError(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := "no error"
	if result.ErrorCode != "" {
		actual = fmt.Sprintf("[%s] %s", result.ErrorCode, result.Error)
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: a.Code,
		Actual:   actual,
	}
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}

func canonicalString(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertMode:
			err = assertMode(result, assertion)
		case AssertNullability:
			err = assertNullability(result, assertion)
		case AssertFieldNullable:
			err = assertFieldNullable(result, assertion)
		case AssertResults:
			err = assertResults(result, assertion)
		case AssertRowCount:
			err = assertRowCount(result, assertion)
		case AssertSQL:
			err = assertSQL(result, assertion)
		case AssertError:
			err = assertError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
