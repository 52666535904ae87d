package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qshape/internal/schema"
)

// CompileTables parses table metadata from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value must have a tables struct. Field order is declaration order,
// which becomes column order:
//
//	tables: users: columns: {
//		id:            {type: "integer", not_null: true}
//		name:          "text"
//		password_hash: {type: "text", hidden: true}
//	}
func CompileTables(v cue.Value) (*schema.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, &CompileError{
			Field:   "tables",
			Message: "tables is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	catalog, _ := schema.NewCatalog()
	for iter.Next() {
		table, err := compileTable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if err := catalog.Add(table); err != nil {
			return nil, &CompileError{
				Field:   "tables." + table.Name(),
				Message: err.Error(),
				Pos:     iter.Value().Pos(),
			}
		}
	}

	if catalog.Len() == 0 {
		return nil, &CompileError{
			Field:   "tables",
			Message: "at least one table is required",
			Pos:     tablesVal.Pos(),
		}
	}

	return catalog, nil
}

// LoadTablesFile compiles a CUE schema file.
func LoadTablesFile(path string) (*schema.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileTablesSource(path, data)
}

// CompileTablesSource compiles CUE source; filename is used in positions.
func CompileTablesSource(filename string, src []byte) (*schema.Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileTables(v)
}

// compileTable parses one table definition.
func compileTable(name string, v cue.Value) (*schema.Table, error) {
	field := "tables." + name

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".columns",
			Message: "columns is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := columnsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []schema.ColumnDef
	for iter.Next() {
		def, err := compileColumn(field+".columns", iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	table, err := schema.NewTable(name, defs...)
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return table, nil
}

// compileColumn parses a column: either a bare type string or a struct
// with type, not_null and hidden.
func compileColumn(prefix, name string, v cue.Value) (schema.ColumnDef, error) {
	field := prefix + "." + name
	def := schema.ColumnDef{Name: name}

	if s, err := v.String(); err == nil {
		typ, err := parseValueType(field, s, v.Pos())
		if err != nil {
			return def, err
		}
		def.Type = typ
		return def, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return def, &CompileError{
			Field:   field,
			Message: "column must be a type string or a struct with a type field",
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		s, err := typeVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		typ, err := parseValueType(field+".type", s, typeVal.Pos())
		if err != nil {
			return def, err
		}
		def.Type = typ
	}

	var err error
	if def.NotNull, err = optionalBool(v, "not_null"); err != nil {
		return def, err
	}
	if def.Hidden, err = optionalBool(v, "hidden"); err != nil {
		return def, err
	}

	return def, nil
}

func parseValueType(field, s string, pos token.Pos) (schema.ValueType, error) {
	typ := schema.ValueType(s)
	if !schema.ValidValueTypes[typ] {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid type %q (want integer, real, text, boolean, json, timestamp or blob)", s),
			Pos:     pos,
		}
	}
	return typ, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
