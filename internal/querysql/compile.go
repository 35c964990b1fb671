package querysql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/crossplot/internal/queryir"
)

// SQLCompiler compiles QueryIR to DuckDB SQL.
//
// Values in WHERE predicates become ? parameters. Literals inside SELECT,
// GROUP BY and ORDER BY expressions are always rendered inline, including
// conditions nested in CASE branches and aggregate filters, so that an
// expression selected and grouped on renders identically in both places.
type SQLCompiler struct {
	// Inline renders WHERE values as literals too. The result has no
	// parameters; it is intended for display and persisted state.
	Inline bool
}

// NewSQLCompiler creates a parameterizing compiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// NewInlineCompiler creates a compiler that renders every value inline.
func NewInlineCompiler() *SQLCompiler {
	return &SQLCompiler{Inline: true}
}

// Compile converts a query to SQL. Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if result := queryir.Validate(q); !result.IsValid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(result.Problems, "; "))
	}
	w := &writer{inline: c.Inline}
	if err := w.query(q); err != nil {
		return "", nil, err
	}
	return w.sb.String(), w.params, nil
}

// CompilePredicate renders a predicate on its own, as it would appear in a
// WHERE clause. A nil predicate renders as the empty string.
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, nil
	}
	w := &writer{inline: c.Inline}
	if err := w.predicate(p); err != nil {
		return "", nil, err
	}
	return w.sb.String(), w.params, nil
}

// CompileExpr renders an expression with inline literals.
func (c *SQLCompiler) CompileExpr(e queryir.Expr) (string, error) {
	w := &writer{inline: true}
	if err := w.expr(e); err != nil {
		return "", err
	}
	return w.sb.String(), nil
}

// writer accumulates SQL text and parameters in textual order, so that
// positional ? placeholders line up with params.
type writer struct {
	sb     strings.Builder
	params []any
	inline bool
	// exprDepth > 0 while rendering inside an expression; values there are
	// always inlined.
	exprDepth int
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.sb.WriteString(p)
	}
}

func (w *writer) query(q queryir.Query) error {
	switch query := q.(type) {
	case queryir.Select:
		return w.selectQuery(query)
	case queryir.Replace:
		return w.replaceQuery(query)
	case queryir.Describe:
		w.write("DESCRIBE ")
		return w.query(query.Query)
	default:
		return fmt.Errorf("unsupported query type: %T", q)
	}
}

func (w *writer) selectQuery(q queryir.Select) error {
	w.write("SELECT ")
	if q.Distinct {
		w.write("DISTINCT ")
	}
	if err := w.columns(q.Columns); err != nil {
		return err
	}

	w.write(" FROM ")
	if err := w.source(q.From); err != nil {
		return fmt.Errorf("compile source: %w", err)
	}

	if q.Where != nil {
		w.write(" WHERE ")
		if err := w.predicate(q.Where); err != nil {
			return fmt.Errorf("compile filter: %w", err)
		}
	}

	if len(q.GroupBy) > 0 {
		w.write(" GROUP BY ")
		if err := w.exprList(q.GroupBy); err != nil {
			return fmt.Errorf("compile group by: %w", err)
		}
	}

	if err := w.orderBy(q.OrderBy); err != nil {
		return err
	}

	if q.Limit > 0 {
		w.write(" LIMIT ", strconv.Itoa(q.Limit))
	}
	return nil
}

func (w *writer) replaceQuery(q queryir.Replace) error {
	w.write("SELECT * REPLACE (")
	if err := w.columns(q.Columns); err != nil {
		return err
	}
	w.write(") FROM (")
	if err := w.query(q.From); err != nil {
		return err
	}
	w.write(")")
	return w.orderBy(q.OrderBy)
}

func (w *writer) columns(cols []queryir.Column) error {
	for i, col := range cols {
		if i > 0 {
			w.write(", ")
		}
		if err := w.expr(col.Expr); err != nil {
			return fmt.Errorf("compile column %d: %w", i, err)
		}
		if col.Alias != "" {
			w.write(" AS ", QuoteIdent(col.Alias))
		}
	}
	return nil
}

func (w *writer) orderBy(orders []queryir.Order) error {
	if len(orders) == 0 {
		return nil
	}
	w.write(" ORDER BY ")
	for i, o := range orders {
		if i > 0 {
			w.write(", ")
		}
		if err := w.expr(o.Expr); err != nil {
			return fmt.Errorf("compile order by: %w", err)
		}
		if o.Desc {
			w.write(" DESC")
		}
	}
	return nil
}

func (w *writer) source(s queryir.Source) error {
	switch src := s.(type) {
	case queryir.Table:
		w.write(QuoteTable(src.Name))
		return nil
	case queryir.Subquery:
		w.write("(")
		if err := w.query(src.Query); err != nil {
			return err
		}
		w.write(")")
		return nil
	case queryir.SQLSource:
		return w.sqlSource(src)
	default:
		return fmt.Errorf("unsupported source type: %T", s)
	}
}

// sqlSource splices the filter into each placeholder occurrence. Parameters
// are appended once per occurrence.
func (w *writer) sqlSource(src queryir.SQLSource) error {
	w.write("(")
	parts := []string{src.SQL}
	if src.Placeholder != "" {
		parts = strings.Split(src.SQL, src.Placeholder)
	}
	for i, part := range parts {
		if i > 0 {
			if src.Filter == nil {
				w.write("TRUE")
			} else {
				w.write("(")
				if err := w.predicate(src.Filter); err != nil {
					return err
				}
				w.write(")")
			}
		}
		w.write(part)
	}
	w.write(")")
	return nil
}

func (w *writer) exprList(exprs []queryir.Expr) error {
	for i, e := range exprs {
		if i > 0 {
			w.write(", ")
		}
		if err := w.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) expr(e queryir.Expr) error {
	w.exprDepth++
	defer func() { w.exprDepth-- }()

	switch expr := e.(type) {
	case queryir.Ref:
		w.write(QuoteIdent(expr.Name))
	case queryir.Literal:
		lit, err := Literal(expr.Value)
		if err != nil {
			return err
		}
		w.write(lit)
	case queryir.Star:
		w.write("*")
	case queryir.Cast:
		if err := w.castOperand(expr.Expr); err != nil {
			return err
		}
		w.write("::", expr.Type)
	case queryir.Func:
		w.write(expr.Name, "(")
		if err := w.exprList(expr.Args); err != nil {
			return err
		}
		w.write(")")
		if expr.Filter != nil {
			w.write(" FILTER (WHERE ")
			if err := w.predicate(expr.Filter); err != nil {
				return err
			}
			w.write(")")
		}
	case queryir.Binary:
		w.write("(")
		if err := w.expr(expr.Left); err != nil {
			return err
		}
		w.write(" ", expr.Op, " ")
		if err := w.expr(expr.Right); err != nil {
			return err
		}
		w.write(")")
	case queryir.Neg:
		w.write("(-")
		if err := w.expr(expr.Expr); err != nil {
			return err
		}
		w.write(")")
	case queryir.List:
		w.write("[")
		if err := w.exprList(expr.Items); err != nil {
			return err
		}
		w.write("]")
	case queryir.Window:
		if err := w.expr(expr.Func); err != nil {
			return err
		}
		w.write(" OVER (")
		if len(expr.PartitionBy) > 0 {
			w.write("PARTITION BY ")
			if err := w.exprList(expr.PartitionBy); err != nil {
				return err
			}
		}
		w.write(")")
	case queryir.Case:
		w.write("CASE")
		for _, when := range expr.Whens {
			w.write(" WHEN ")
			if err := w.predicate(when.Cond); err != nil {
				return err
			}
			w.write(" THEN ")
			if err := w.expr(when.Then); err != nil {
				return err
			}
		}
		if expr.Else != nil {
			w.write(" ELSE ")
			if err := w.expr(expr.Else); err != nil {
				return err
			}
		}
		w.write(" END")
	default:
		return fmt.Errorf("unsupported expression type: %T", e)
	}
	return nil
}

// castOperand parenthesizes operands that would otherwise bind looser
// than the :: operator.
func (w *writer) castOperand(e queryir.Expr) error {
	switch e.(type) {
	case queryir.Ref, queryir.Func, queryir.Binary, queryir.Cast:
		return w.expr(e)
	}
	w.write("(")
	if err := w.expr(e); err != nil {
		return err
	}
	w.write(")")
	return nil
}

// value renders a predicate operand as a placeholder or an inline literal.
func (w *writer) value(v any) error {
	if w.inline || w.exprDepth > 0 {
		lit, err := Literal(v)
		if err != nil {
			return err
		}
		w.write(lit)
		return nil
	}
	param, err := toParam(v)
	if err != nil {
		return err
	}
	w.write("?")
	w.params = append(w.params, param)
	return nil
}

func (w *writer) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case queryir.Compare:
		if err := w.expr(pred.Expr); err != nil {
			return err
		}
		w.write(" ", pred.Op, " ")
		return w.value(pred.Value)
	case queryir.Between:
		if err := w.expr(pred.Expr); err != nil {
			return err
		}
		w.write(" BETWEEN ")
		if err := w.value(pred.Lo); err != nil {
			return err
		}
		w.write(" AND ")
		return w.value(pred.Hi)
	case queryir.In:
		if len(pred.Values) == 0 {
			if pred.Not {
				w.write("TRUE")
			} else {
				w.write("FALSE")
			}
			return nil
		}
		if err := w.expr(pred.Expr); err != nil {
			return err
		}
		if pred.Not {
			w.write(" NOT IN (")
		} else {
			w.write(" IN (")
		}
		for i, v := range pred.Values {
			if i > 0 {
				w.write(", ")
			}
			if err := w.value(v); err != nil {
				return err
			}
		}
		w.write(")")
	case queryir.IsNull:
		if err := w.expr(pred.Expr); err != nil {
			return err
		}
		if pred.Not {
			w.write(" IS NOT NULL")
		} else {
			w.write(" IS NULL")
		}
	case queryir.IsFinite:
		if pred.Not {
			w.write("NOT ")
		}
		w.write("isfinite(")
		operand := pred.Expr
		if c, ok := operand.(queryir.Cast); !ok || c.Type != "DOUBLE" {
			operand = queryir.Double(operand)
		}
		if err := w.expr(operand); err != nil {
			return err
		}
		w.write(")")
	case queryir.And:
		return w.connective(pred.Predicates, " AND ", "TRUE")
	case queryir.Or:
		return w.connective(pred.Predicates, " OR ", "FALSE")
	case queryir.Not:
		w.write("NOT (")
		if err := w.predicate(pred.Predicate); err != nil {
			return err
		}
		w.write(")")
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

func (w *writer) connective(preds []queryir.Predicate, op, empty string) error {
	switch len(preds) {
	case 0:
		w.write(empty)
		return nil
	case 1:
		return w.predicate(preds[0])
	}
	w.write("(")
	for i, p := range preds {
		if i > 0 {
			w.write(op)
		}
		if err := w.predicate(p); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

// QuoteIdent quotes a SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable quotes each segment of a possibly schema-qualified table name.
func QuoteTable(name string) string {
	segments := strings.Split(name, ".")
	for i, s := range segments {
		segments[i] = QuoteIdent(s)
	}
	return strings.Join(segments, ".")
}

// Literal renders a Go value as a DuckDB literal.
func Literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return formatFloat(float64(val)), nil
	case float64:
		return formatFloat(val), nil
	case time.Time:
		return "TIMESTAMP '" + val.UTC().Format("2006-01-02 15:04:05.999999") + "'", nil
	default:
		return "", fmt.Errorf("unsupported literal type: %T", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'::DOUBLE"
	case math.IsInf(f, 1):
		return "'Infinity'::DOUBLE"
	case math.IsInf(f, -1):
		return "'-Infinity'::DOUBLE"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// toParam normalizes a value for database/sql.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, int64, float64, time.Time:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("parameter %d overflows int64", val)
		}
		return int64(val), nil
	case float32:
		return float64(val), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %T", v)
	}
}
