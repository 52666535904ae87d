package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
	"github.com/roach88/qshape/internal/shape"
)

// Dialect selects identifier quoting, placeholder style and the few
// clause differences between supported databases.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ValidDialects defines supported dialects.
var ValidDialects = map[Dialect]bool{
	DialectSQLite:   true,
	DialectPostgres: true,
	DialectMySQL:    true,
}

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	d := Dialect(strings.ToLower(s))
	if !ValidDialects[d] {
		return "", fmt.Errorf("unknown dialect %q (want sqlite, postgres or mysql)", s)
	}
	return d, nil
}

// Quote quotes an identifier.
func (d Dialect) Quote(ident string) string {
	if d == DialectMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns the n-th (1-based) parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// SQLCompiler renders a shape.Plan as one parameterized SELECT.
//
// The projection is exactly the plan's SelectFieldsOrdered, in order, so
// every row the driver returns lines up with the result schema.
//
// CRITICAL: values are never interpolated. Literals, expression arguments
// and bound parameters all become placeholders.
type SQLCompiler struct {
	Dialect Dialect

	// BoundValues holds values for BoundEquals predicates and parameterized
	// LIMIT/OFFSET, keyed by parameter name.
	BoundValues map[string]any
}

// NewSQLCompiler creates a compiler for dialect.
func NewSQLCompiler(dialect Dialect) *SQLCompiler {
	return &SQLCompiler{
		Dialect:     dialect,
		BoundValues: make(map[string]any),
	}
}

// Compile converts a plan to (sql, params).
//
//	SELECT <fields> FROM <anchor> <joins> [WHERE] [GROUP BY] [ORDER BY] [LIMIT] [OFFSET]
func (c *SQLCompiler) Compile(plan *shape.Plan) (string, []any, error) {
	if plan == nil || plan.Query == nil {
		return "", nil, fmt.Errorf("cannot compile nil plan")
	}
	if !ValidDialects[c.Dialect] {
		return "", nil, fmt.Errorf("unknown dialect %q", c.Dialect)
	}
	if len(plan.Fields) == 0 {
		return "", nil, fmt.Errorf("plan projects no fields")
	}

	w := &writer{dialect: c.Dialect}
	q := plan.Query

	w.sql.WriteString("SELECT ")
	for i, f := range plan.Fields {
		if i > 0 {
			w.sql.WriteString(", ")
		}
		if err := c.writeField(w, f); err != nil {
			return "", nil, fmt.Errorf("select %s: %w", strings.Join(f.Path, "."), err)
		}
	}

	w.sql.WriteString(" FROM ")
	w.writeTable(q.Graph.Anchor())

	for _, edge := range q.Graph.Edges() {
		if edge.Kind == queryir.JoinFull && c.Dialect == DialectMySQL {
			return "", nil, fmt.Errorf("join %s: mysql does not support FULL JOIN", edge.Table.Name())
		}
		w.sql.WriteString(" " + edge.Kind.SQL() + " ")
		w.writeTable(edge.Table)
		w.sql.WriteString(" ON ")
		if err := c.writePredicate(w, edge.On); err != nil {
			return "", nil, fmt.Errorf("join %s: %w", edge.Table.Name(), err)
		}
	}

	if q.Where != nil {
		w.sql.WriteString(" WHERE ")
		if err := c.writePredicate(w, q.Where); err != nil {
			return "", nil, fmt.Errorf("where: %w", err)
		}
	}

	if len(q.GroupBy) > 0 {
		w.sql.WriteString(" GROUP BY ")
		for i, node := range q.GroupBy {
			if i > 0 {
				w.sql.WriteString(", ")
			}
			if err := c.writeTerm(w, node); err != nil {
				return "", nil, fmt.Errorf("group by: %w", err)
			}
		}
	}

	if len(q.OrderBy) > 0 {
		w.sql.WriteString(" ORDER BY ")
		for i, term := range q.OrderBy {
			if i > 0 {
				w.sql.WriteString(", ")
			}
			if err := c.writeTerm(w, term.Node); err != nil {
				return "", nil, fmt.Errorf("order by: %w", err)
			}
			if term.Desc {
				w.sql.WriteString(" DESC")
			} else {
				w.sql.WriteString(" ASC")
			}
		}
	}

	if err := c.writeLimitOffset(w, q.Limit, q.Offset); err != nil {
		return "", nil, err
	}

	return w.sql.String(), w.params, nil
}

// writer accumulates SQL text and parameters in placeholder order.
type writer struct {
	dialect Dialect
	sql     strings.Builder
	params  []any
}

// bind appends a parameter and writes its placeholder.
func (w *writer) bind(v any) {
	w.params = append(w.params, v)
	w.sql.WriteString(w.dialect.Placeholder(len(w.params)))
}

func (w *writer) writeColumn(col *schema.Column) {
	w.sql.WriteString(w.dialect.Quote(col.Table) + "." + w.dialect.Quote(col.Name))
}

// writeTable writes a FROM/JOIN target, aliasing when the table is an alias.
func (w *writer) writeTable(t *schema.Table) {
	w.sql.WriteString(w.dialect.Quote(t.BaseName()))
	if t.IsAlias() {
		w.sql.WriteString(" AS " + w.dialect.Quote(t.Name()))
	}
}

// writeRaw writes user SQL, replacing each ? outside string literals with
// a bound placeholder. The number of markers must match args.
func (w *writer) writeRaw(sql string, args []ir.IRValue) error {
	next := 0
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'':
			inString = !inString
			w.sql.WriteByte(ch)
		case ch == '?' && !inString:
			if next >= len(args) {
				return fmt.Errorf("sql %q has more placeholders than arguments (%d)", sql, len(args))
			}
			param, err := irValueToParam(args[next])
			if err != nil {
				return fmt.Errorf("argument %d: %w", next, err)
			}
			w.bind(param)
			next++
		default:
			w.sql.WriteByte(ch)
		}
	}
	if next != len(args) {
		return fmt.Errorf("sql %q has %d placeholders but %d arguments", sql, next, len(args))
	}
	return nil
}

func (c *SQLCompiler) writeField(w *writer, f shape.SelectField) error {
	switch {
	case f.Column != nil:
		w.writeColumn(f.Column)
		return nil
	case f.Expr != nil:
		return w.writeRaw(f.Expr.SQL, f.Expr.Args)
	default:
		return fmt.Errorf("field has neither column nor expression")
	}
}

func (c *SQLCompiler) writeTerm(w *writer, node queryir.Selection) error {
	switch n := node.(type) {
	case queryir.Column:
		w.writeColumn(n.Ref)
	case *queryir.Column:
		w.writeColumn(n.Ref)
	case queryir.Expression:
		return w.writeRaw(n.SQL, n.Args)
	case *queryir.Expression:
		return w.writeRaw(n.SQL, n.Args)
	default:
		return fmt.Errorf("unsupported term type: %T", node)
	}
	return nil
}

// writePredicate renders a predicate. A nil predicate is always true.
func (c *SQLCompiler) writePredicate(w *writer, p queryir.Predicate) error {
	switch pred := p.(type) {
	case nil:
		w.sql.WriteString("1 = 1")
	case queryir.Equals:
		return c.writeEquals(w, pred)
	case *queryir.Equals:
		return c.writeEquals(w, *pred)
	case queryir.ColumnEquals:
		c.writeColumnEquals(w, pred)
	case *queryir.ColumnEquals:
		c.writeColumnEquals(w, *pred)
	case queryir.BoundEquals:
		return c.writeBoundEquals(w, pred)
	case *queryir.BoundEquals:
		return c.writeBoundEquals(w, *pred)
	case queryir.IsNull:
		c.writeIsNull(w, pred)
	case *queryir.IsNull:
		c.writeIsNull(w, *pred)
	case queryir.And:
		return c.writeAnd(w, pred)
	case *queryir.And:
		return c.writeAnd(w, *pred)
	case queryir.Raw:
		return c.writeRawPredicate(w, pred)
	case *queryir.Raw:
		return c.writeRawPredicate(w, *pred)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

// writeEquals renders "col = ?". Comparing to null renders IS NULL, since
// "= NULL" never matches.
func (c *SQLCompiler) writeEquals(w *writer, eq queryir.Equals) error {
	w.writeColumn(eq.Column)
	if ir.IsNull(eq.Value) {
		w.sql.WriteString(" IS NULL")
		return nil
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return fmt.Errorf("convert value: %w", err)
	}
	w.sql.WriteString(" = ")
	w.bind(param)
	return nil
}

func (c *SQLCompiler) writeColumnEquals(w *writer, eq queryir.ColumnEquals) {
	w.writeColumn(eq.Left)
	w.sql.WriteString(" = ")
	w.writeColumn(eq.Right)
}

// writeBoundEquals looks the value up in BoundValues; a missing value is
// an error rather than a silently dropped parameter.
func (c *SQLCompiler) writeBoundEquals(w *writer, beq queryir.BoundEquals) error {
	val, ok := c.BoundValues[beq.Param]
	if !ok {
		return fmt.Errorf("no value bound for parameter %q", beq.Param)
	}
	w.writeColumn(beq.Column)
	w.sql.WriteString(" = ")
	w.bind(val)
	return nil
}

func (c *SQLCompiler) writeIsNull(w *writer, isNull queryir.IsNull) {
	w.writeColumn(isNull.Column)
	if isNull.Not {
		w.sql.WriteString(" IS NOT NULL")
	} else {
		w.sql.WriteString(" IS NULL")
	}
}

func (c *SQLCompiler) writeAnd(w *writer, and queryir.And) error {
	if len(and.Predicates) == 0 {
		w.sql.WriteString("1 = 1") // vacuous truth
		return nil
	}
	for i, pred := range and.Predicates {
		if i > 0 {
			w.sql.WriteString(" AND ")
		}
		w.sql.WriteByte('(')
		if err := c.writePredicate(w, pred); err != nil {
			return err
		}
		w.sql.WriteByte(')')
	}
	return nil
}

func (c *SQLCompiler) writeRawPredicate(w *writer, raw queryir.Raw) error {
	if raw.SQL == "" {
		return fmt.Errorf("raw predicate SQL is empty")
	}
	return w.writeRaw(raw.SQL, raw.Args)
}

// writeLimitOffset renders LIMIT and OFFSET. SQLite and MySQL cannot take
// OFFSET without LIMIT, so an unbounded LIMIT is written in that case.
func (c *SQLCompiler) writeLimitOffset(w *writer, limit, offset *queryir.Count) error {
	if limit != nil {
		w.sql.WriteString(" LIMIT ")
		if err := c.writeCount(w, limit); err != nil {
			return fmt.Errorf("limit: %w", err)
		}
	} else if offset != nil {
		switch c.Dialect {
		case DialectSQLite:
			w.sql.WriteString(" LIMIT -1")
		case DialectMySQL:
			w.sql.WriteString(" LIMIT 18446744073709551615")
		}
	}

	if offset != nil {
		w.sql.WriteString(" OFFSET ")
		if err := c.writeCount(w, offset); err != nil {
			return fmt.Errorf("offset: %w", err)
		}
	}
	return nil
}

func (c *SQLCompiler) writeCount(w *writer, count *queryir.Count) error {
	if count.Param == "" {
		w.bind(int64(count.Value))
		return nil
	}
	val, ok := c.BoundValues[count.Param]
	if !ok {
		return fmt.Errorf("no value bound for parameter %q", count.Param)
	}
	w.bind(val)
	return nil
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL
// parameter. Arrays and objects cannot be parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
