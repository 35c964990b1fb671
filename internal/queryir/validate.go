package queryir

import "fmt"

// ValidationResult lists structural problems found in a query.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems describes each malformed node, in traversal order.
	Problems []string
}

// Validate checks that a query is well formed before it is compiled:
// selects have columns and a source, aliases are unique, operators are
// known, and no expression slot is nil.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case Replace:
		if query.From == nil {
			v.addProblem("replace without inner query")
		} else {
			v.validateQuery(query.From)
		}
		if len(query.Columns) == 0 {
			v.addProblem("replace without columns")
		}
		v.validateColumns(query.Columns)
		v.validateOrders(query.OrderBy)
	case Describe:
		v.validateQuery(query.Query)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if len(sel.Columns) == 0 {
		v.addProblem("select without columns")
	}
	v.validateColumns(sel.Columns)

	switch src := sel.From.(type) {
	case nil:
		v.addProblem("select without source")
	case Table:
		if src.Name == "" {
			v.addProblem("empty table name")
		}
	case Subquery:
		v.validateQuery(src.Query)
	case SQLSource:
		if src.SQL == "" {
			v.addProblem("empty SQL source")
		}
		v.validatePredicate(src.Filter)
	default:
		v.addProblem("unknown source type %T", sel.From)
	}

	v.validatePredicate(sel.Where)
	for i, g := range sel.GroupBy {
		if g == nil {
			v.addProblem("group by %d is nil", i)
			continue
		}
		v.validateExpr(g)
	}
	v.validateOrders(sel.OrderBy)
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
}

func (v *validator) validateColumns(cols []Column) {
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		if c.Expr == nil {
			v.addProblem("column %d has no expression", i)
			continue
		}
		v.validateExpr(c.Expr)
		if c.Alias == "" {
			continue
		}
		if seen[c.Alias] {
			v.addProblem("duplicate column alias %q", c.Alias)
		}
		seen[c.Alias] = true
	}
}

func (v *validator) validateOrders(orders []Order) {
	for i, o := range orders {
		if o.Expr == nil {
			v.addProblem("order by %d is nil", i)
			continue
		}
		v.validateExpr(o.Expr)
	}
}

func (v *validator) validateExpr(e Expr) {
	switch expr := e.(type) {
	case nil:
		v.addProblem("nil expression")
	case Ref:
		if expr.Name == "" {
			v.addProblem("empty column reference")
		}
	case Literal, Star:
	case Cast:
		if expr.Type == "" {
			v.addProblem("cast without type")
		}
		v.validateExpr(expr.Expr)
	case Func:
		if expr.Name == "" {
			v.addProblem("function without name")
		}
		for _, a := range expr.Args {
			v.validateExpr(a)
		}
		v.validatePredicate(expr.Filter)
	case Binary:
		switch expr.Op {
		case OpAdd, OpSub, OpMul, OpDiv:
		default:
			v.addProblem("unknown arithmetic operator %q", expr.Op)
		}
		v.validateExpr(expr.Left)
		v.validateExpr(expr.Right)
	case Neg:
		v.validateExpr(expr.Expr)
	case List:
		for _, item := range expr.Items {
			v.validateExpr(item)
		}
	case Window:
		v.validateExpr(expr.Func)
		for _, p := range expr.PartitionBy {
			v.validateExpr(p)
		}
	case Case:
		if len(expr.Whens) == 0 {
			v.addProblem("case without branches")
		}
		for _, w := range expr.Whens {
			if w.Cond == nil {
				v.addProblem("case branch without condition")
			} else {
				v.validatePredicate(w.Cond)
			}
			v.validateExpr(w.Then)
		}
		if expr.Else != nil {
			v.validateExpr(expr.Else)
		}
	default:
		v.addProblem("unknown expression type %T", e)
	}
}

// validatePredicate accepts nil; a nil predicate means no filter.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Compare:
		switch pred.Op {
		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		default:
			v.addProblem("unknown comparison operator %q", pred.Op)
		}
		v.validateExpr(pred.Expr)
	case Between:
		v.validateExpr(pred.Expr)
	case In:
		v.validateExpr(pred.Expr)
	case IsNull:
		v.validateExpr(pred.Expr)
	case IsFinite:
		v.validateExpr(pred.Expr)
	case And:
		for _, sub := range pred.Predicates {
			v.requirePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.requirePredicate(sub)
		}
	case Not:
		v.requirePredicate(pred.Predicate)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) requirePredicate(p Predicate) {
	if p == nil {
		v.addProblem("nil predicate inside connective")
		return
	}
	v.validatePredicate(p)
}
