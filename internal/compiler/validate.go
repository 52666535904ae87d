package compiler

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qshape/internal/queryir"
)

// Validation error codes (E200-E299)
const (
	ErrQueryFromEmpty      = "E201" // from is required
	ErrInvalidJoinKind     = "E202" // kind must be inner, left, right or full
	ErrJoinTableEmpty      = "E203" // join table is required
	ErrInvalidPredicate    = "E204" // predicate needs sql or column plus one operator
	ErrInvalidColumnRef    = "E205" // reference must be table.column
	ErrInvalidCount        = "E206" // negative limit/offset or empty param
	ErrInvalidSelection    = "E207" // selection node is not a reference or mapping
	ErrDuplicateSelectKey  = "E208" // duplicate key within one selection mapping
	ErrInvalidOrderBy      = "E209" // order term needs exactly one of column or sql
	ErrJoinAliasIsTable    = "E210" // alias equal to the aliased table name
)

// ValidationError represents a query definition error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateQuery checks a definition's structure without a catalog.
// Returns all errors found (does not fail-fast).
//
// Name resolution is not checked here; CompileQuery and shape.Build do that.
func ValidateQuery(def *QueryDef) []ValidationError {
	if def == nil {
		return []ValidationError{{Field: "query", Message: "query definition is nil", Code: ErrQueryFromEmpty}}
	}

	var errs []ValidationError

	// E201: from is required
	if strings.TrimSpace(def.From) == "" {
		errs = append(errs, ValidationError{
			Field:   "from",
			Message: "from is required",
			Code:    ErrQueryFromEmpty,
		})
	}

	for i, j := range def.Joins {
		field := fmt.Sprintf("joins[%d]", i)

		// E203: join table is required
		if strings.TrimSpace(j.Table) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".table",
				Message: "join table is required",
				Code:    ErrJoinTableEmpty,
			})
		}

		// E202: join kind
		if !queryir.ValidJoinKinds[queryir.JoinKind(j.Kind)] {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid join kind %q, must be \"inner\", \"left\", \"right\", or \"full\"", j.Kind),
				Code:    ErrInvalidJoinKind,
			})
		}

		// E210: alias must differ from the table name
		if j.As != "" && j.As == j.Table {
			errs = append(errs, ValidationError{
				Field:   field + ".as",
				Message: fmt.Sprintf("alias %q equals the table name", j.As),
				Code:    ErrJoinAliasIsTable,
			})
		}

		errs = append(errs, validatePredicates(field+".on", j.On)...)
	}

	errs = append(errs, validateSelection("select", &def.Select)...)
	errs = append(errs, validatePredicates("where", def.Where)...)

	for i, ref := range def.GroupBy {
		errs = append(errs, validateColumnRef(fmt.Sprintf("group_by[%d]", i), ref)...)
	}

	for i, o := range def.OrderBy {
		field := fmt.Sprintf("order_by[%d]", i)
		// E209: exactly one of column and sql
		if (o.Column == "") == (o.SQL == "") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "order term needs exactly one of column or sql",
				Code:    ErrInvalidOrderBy,
			})
			continue
		}
		if o.Column != "" {
			errs = append(errs, validateColumnRef(field+".column", o.Column)...)
		}
	}

	errs = append(errs, validateCount("limit", def.Limit)...)
	errs = append(errs, validateCount("offset", def.Offset)...)

	return errs
}

// validatePredicates checks each condition's operator set.
func validatePredicates(field string, defs []PredicateDef) []ValidationError {
	var errs []ValidationError

	for i, d := range defs {
		pfield := fmt.Sprintf("%s[%d]", field, i)

		if d.SQL != "" {
			if d.Column != "" || countOperators(d) > 0 {
				errs = append(errs, ValidationError{
					Field:   pfield,
					Message: "sql predicates take no column or operator",
					Code:    ErrInvalidPredicate,
				})
			}
			continue
		}

		// E204: column plus exactly one operator
		if n := countOperators(d); d.Column == "" || n != 1 {
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("predicate needs a column and exactly one of equals, equals_column, param, is_null (got %d)", n),
				Code:    ErrInvalidPredicate,
			})
			continue
		}

		errs = append(errs, validateColumnRef(pfield+".column", d.Column)...)
		if d.EqualsColumn != "" {
			errs = append(errs, validateColumnRef(pfield+".equals_column", d.EqualsColumn)...)
		}
	}

	return errs
}

func countOperators(d PredicateDef) int {
	n := 0
	if d.Equals != nil {
		n++
	}
	if d.EqualsColumn != "" {
		n++
	}
	if d.Param != "" {
		n++
	}
	if d.IsNull != nil {
		n++
	}
	return n
}

// validateColumnRef checks the table.column form.
func validateColumnRef(field, ref string) []ValidationError {
	if _, _, ok := splitRef(ref); ok {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("column reference %q must be table.column", ref),
		Code:    ErrInvalidColumnRef,
	}}
}

// validateSelection walks a selection mapping.
func validateSelection(field string, node *yaml.Node) []ValidationError {
	if node.Kind == 0 {
		return nil // default selection
	}
	if node.Kind != yaml.MappingNode {
		return []ValidationError{{
			Field:   field,
			Message: "selection must be a mapping",
			Code:    ErrInvalidSelection,
			Line:    node.Line,
		}}
	}

	var errs []ValidationError
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		kfield := field + "." + key

		// E208: duplicate keys
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   kfield,
				Message: fmt.Sprintf("duplicate selection key %q", key),
				Code:    ErrDuplicateSelectKey,
				Line:    node.Content[i].Line,
			})
		}
		seen[key] = true

		switch value.Kind {
		case yaml.ScalarNode:
			if value.Value == "" {
				errs = append(errs, ValidationError{
					Field:   kfield,
					Message: "selection reference is empty",
					Code:    ErrInvalidSelection,
					Line:    value.Line,
				})
			} else if strings.Contains(value.Value, ".") {
				if refErrs := validateColumnRef(kfield, value.Value); len(refErrs) > 0 {
					refErrs[0].Line = value.Line
					errs = append(errs, refErrs...)
				}
			}
		case yaml.MappingNode:
			if !isExpressionNode(value) {
				errs = append(errs, validateSelection(kfield, value)...)
			}
		default:
			errs = append(errs, ValidationError{
				Field:   kfield,
				Message: "selection must be a reference or a mapping",
				Code:    ErrInvalidSelection,
				Line:    value.Line,
			})
		}
	}

	return errs
}

// validateCount checks a LIMIT/OFFSET definition.
func validateCount(field string, c *CountDef) []ValidationError {
	if c == nil {
		return nil
	}
	if c.Param == "" && c.Value < 0 {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("must not be negative, got %d", c.Value),
			Code:    ErrInvalidCount,
		}}
	}
	return nil
}
