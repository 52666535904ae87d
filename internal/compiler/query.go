package compiler

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
)

// QueryDef is the YAML form of a query.
//
//	from: users
//	joins:
//	  - table: posts
//	    kind: left
//	    on: [{column: users.id, equals_column: posts.user_id}]
//	select:
//	  id: users.id          # column
//	  post: posts           # whole table
//	  author:               # nested object
//	    name: users.name
//	  total: {sql: "count(*)", type: integer}
//	where: [{column: users.name, equals: Ann}]
//	order_by: [{column: users.id, desc: true}]
//	limit: 10               # or {param: page_size}
//
// Select is kept as a yaml.Node so key order survives decoding; it is the
// result's key order and the projection order.
type QueryDef struct {
	From    string         `yaml:"from"`
	Joins   []JoinDef      `yaml:"joins,omitempty"`
	Select  yaml.Node      `yaml:"select,omitempty"`
	Where   []PredicateDef `yaml:"where,omitempty"`
	GroupBy []string       `yaml:"group_by,omitempty"`
	OrderBy []OrderDef     `yaml:"order_by,omitempty"`
	Limit   *CountDef      `yaml:"limit,omitempty"`
	Offset  *CountDef      `yaml:"offset,omitempty"`
}

// JoinDef is one join. As aliases the table, which allows self-joins.
type JoinDef struct {
	Table string         `yaml:"table"`
	As    string         `yaml:"as,omitempty"`
	Kind  string         `yaml:"kind"`
	On    []PredicateDef `yaml:"on,omitempty"`
}

// PredicateDef is one condition; a list of them is a conjunction.
// Either SQL is set, or Column plus exactly one operator.
type PredicateDef struct {
	Column       string     `yaml:"column,omitempty"`
	Equals       *yaml.Node `yaml:"equals,omitempty"`
	EqualsColumn string     `yaml:"equals_column,omitempty"`
	Param        string     `yaml:"param,omitempty"`
	IsNull       *bool      `yaml:"is_null,omitempty"`
	SQL          string     `yaml:"sql,omitempty"`
	Args         []any      `yaml:"args,omitempty"`
}

// OrderDef is one ORDER BY term: a column reference or SQL.
type OrderDef struct {
	Column string `yaml:"column,omitempty"`
	SQL    string `yaml:"sql,omitempty"`
	Desc   bool   `yaml:"desc,omitempty"`
}

// CountDef is a LIMIT/OFFSET: an integer literal or {param: name}.
type CountDef struct {
	Value int
	Param string
}

// UnmarshalYAML accepts a bare integer or a mapping with param.
func (c *CountDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&c.Value)
	case yaml.MappingNode:
		var m struct {
			Param string `yaml:"param"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		c.Param = m.Param
		return nil
	default:
		return fmt.Errorf("line %d: count must be an integer or {param: name}", node.Line)
	}
}

// ParseQuery decodes a YAML query definition. Unknown fields are errors.
func ParseQuery(data []byte) (*QueryDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def QueryDef
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return &def, nil
}

// LoadQueryFile reads and decodes a YAML query file.
func LoadQueryFile(path string) (*QueryDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	return ParseQuery(data)
}

// CompileQuery turns a definition into a queryir.Query against catalog.
//
// Tables named in from and joins must exist in the catalog. References in
// selections and clauses are resolved leniently: a reference to a catalog
// table that is not part of the query, or to a column the table lacks, is
// passed through so shape.Build reports it as UNRESOLVED_TABLE or
// UNKNOWN_COLUMN.
func CompileQuery(def *QueryDef, catalog *schema.Catalog) (*queryir.Query, error) {
	if errs := ValidateQuery(def); len(errs) > 0 {
		return nil, errs[0]
	}

	anchor, ok := catalog.Table(def.From)
	if !ok {
		return nil, &CompileError{Field: "from", Message: fmt.Sprintf("table %q is not defined in the schema", def.From)}
	}

	s := &scope{catalog: catalog, tables: map[string]*schema.Table{anchor.Name(): anchor}}
	q := queryir.From(anchor)

	for i, j := range def.Joins {
		field := fmt.Sprintf("joins[%d]", i)
		base, ok := catalog.Table(j.Table)
		if !ok {
			return nil, &CompileError{Field: field + ".table", Message: fmt.Sprintf("table %q is not defined in the schema", j.Table)}
		}
		table := base
		if j.As != "" {
			table = base.As(j.As)
		}
		// Visible to its own ON clause
		if _, taken := s.tables[table.Name()]; !taken {
			s.tables[table.Name()] = table
		}

		on, err := s.predicates(field+".on", j.On)
		if err != nil {
			return nil, err
		}
		q.Join(queryir.JoinKind(j.Kind), table, on)
	}

	if def.Select.Kind != 0 {
		obj, err := s.object("select", &def.Select)
		if err != nil {
			return nil, err
		}
		q.Select(obj)
	}

	where, err := s.predicates("where", def.Where)
	if err != nil {
		return nil, err
	}
	q.Filter(where)

	for i, ref := range def.GroupBy {
		col, err := s.column(fmt.Sprintf("group_by[%d]", i), ref)
		if err != nil {
			return nil, err
		}
		q.Group(queryir.Col(col))
	}

	for i, o := range def.OrderBy {
		field := fmt.Sprintf("order_by[%d]", i)
		if o.SQL != "" {
			q.Order(queryir.SQL(o.SQL), o.Desc)
			continue
		}
		col, err := s.column(field, o.Column)
		if err != nil {
			return nil, err
		}
		q.Order(queryir.Col(col), o.Desc)
	}

	if def.Limit != nil {
		q.Limit = &queryir.Count{Value: def.Limit.Value, Param: def.Limit.Param}
	}
	if def.Offset != nil {
		q.Offset = &queryir.Count{Value: def.Offset.Value, Param: def.Offset.Param}
	}

	return q, nil
}

// scope resolves names against the query's tables, then the catalog.
type scope struct {
	catalog *schema.Catalog
	tables  map[string]*schema.Table
}

func (s *scope) table(name string) (*schema.Table, bool) {
	if t, ok := s.tables[name]; ok {
		return t, true
	}
	return s.catalog.Table(name)
}

// column resolves "table.column". Unknown columns of known tables come back
// as detached references for shape.Build to reject.
func (s *scope) column(field, ref string) (*schema.Column, error) {
	tableName, colName, ok := splitRef(ref)
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("column reference %q must be table.column", ref)}
	}
	t, ok := s.table(tableName)
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("table %q is not defined in the schema", tableName)}
	}
	if col, ok := t.Column(colName); ok {
		return col, nil
	}
	return &schema.Column{Name: colName, Table: t.Name(), Type: schema.TypeUnknown}, nil
}

func (s *scope) predicates(field string, defs []PredicateDef) (queryir.Predicate, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	preds := make([]queryir.Predicate, 0, len(defs))
	for i, d := range defs {
		p, err := s.predicate(fmt.Sprintf("%s[%d]", field, i), d)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return queryir.And{Predicates: preds}, nil
}

func (s *scope) predicate(field string, d PredicateDef) (queryir.Predicate, error) {
	if d.SQL != "" {
		args, err := irArgs(field+".args", d.Args)
		if err != nil {
			return nil, err
		}
		return queryir.Raw{SQL: d.SQL, Args: args}, nil
	}

	col, err := s.column(field+".column", d.Column)
	if err != nil {
		return nil, err
	}

	switch {
	case d.Equals != nil:
		var raw any
		if err := d.Equals.Decode(&raw); err != nil {
			return nil, &CompileError{Field: field + ".equals", Message: err.Error()}
		}
		val, err := ir.FromAny(raw)
		if err != nil {
			return nil, &CompileError{Field: field + ".equals", Message: err.Error()}
		}
		return queryir.Equals{Column: col, Value: val}, nil
	case d.EqualsColumn != "":
		right, err := s.column(field+".equals_column", d.EqualsColumn)
		if err != nil {
			return nil, err
		}
		return queryir.Eq(col, right), nil
	case d.Param != "":
		return queryir.BoundEquals{Column: col, Param: d.Param}, nil
	default:
		return queryir.IsNull{Column: col, Not: !*d.IsNull}, nil
	}
}

// object compiles a selection mapping, preserving key order.
func (s *scope) object(field string, node *yaml.Node) (queryir.Object, error) {
	if node.Kind != yaml.MappingNode {
		return queryir.Object{}, &CompileError{Field: field, Message: fmt.Sprintf("line %d: selection must be a mapping", node.Line)}
	}

	obj := queryir.Object{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		sel, err := s.selection(field+"."+key, node.Content[i+1])
		if err != nil {
			return queryir.Object{}, err
		}
		obj.Fields = append(obj.Fields, queryir.F(key, sel))
	}
	return obj, nil
}

// selection compiles one selection value:
//
//	"t.c"           column
//	"t"             whole table
//	{sql: ...}      expression (with optional args and type)
//	{k: ..., ...}   nested object
func (s *scope) selection(field string, node *yaml.Node) (queryir.Selection, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if strings.Contains(node.Value, ".") {
			col, err := s.column(field, node.Value)
			if err != nil {
				return nil, err
			}
			return queryir.Col(col), nil
		}
		t, ok := s.table(node.Value)
		if !ok {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("line %d: table %q is not defined in the schema", node.Line, node.Value)}
		}
		return queryir.Tbl(t), nil
	case yaml.MappingNode:
		if isExpressionNode(node) {
			return s.expression(field, node)
		}
		return s.object(field, node)
	default:
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("line %d: selection must be a reference or a mapping", node.Line)}
	}
}

// isExpressionNode reports whether a mapping is {sql, args?, type?}.
func isExpressionNode(node *yaml.Node) bool {
	hasSQL := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "sql":
			hasSQL = node.Content[i+1].Kind == yaml.ScalarNode
		case "args", "type":
		default:
			return false
		}
	}
	return hasSQL
}

func (s *scope) expression(field string, node *yaml.Node) (queryir.Selection, error) {
	var def struct {
		SQL  string `yaml:"sql"`
		Args []any  `yaml:"args"`
		Type string `yaml:"type"`
	}
	if err := node.Decode(&def); err != nil {
		return nil, &CompileError{Field: field, Message: err.Error()}
	}

	expr := queryir.Expression{SQL: def.SQL, Type: schema.TypeUnknown}
	if def.Type != "" {
		typ := schema.ValueType(def.Type)
		if !schema.ValidValueTypes[typ] {
			return nil, &CompileError{Field: field + ".type", Message: fmt.Sprintf("line %d: invalid type %q", node.Line, def.Type)}
		}
		expr.Type = typ
	}

	args, err := irArgs(field+".args", def.Args)
	if err != nil {
		return nil, err
	}
	expr.Args = args
	return expr, nil
}

func irArgs(field string, raw []any) ([]ir.IRValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	args := make([]ir.IRValue, len(raw))
	for i, a := range raw {
		v, err := ir.FromAny(a)
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
		}
		args[i] = v
	}
	return args, nil
}

func splitRef(ref string) (table, column string, ok bool) {
	table, column, ok = strings.Cut(ref, ".")
	if !ok || table == "" || column == "" || strings.Contains(column, ".") {
		return "", "", false
	}
	return table, column, true
}
