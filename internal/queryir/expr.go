package queryir

// Expr is a scalar or aggregate expression.
type Expr interface {
	exprNode()
}

// Ref references a column by name.
type Ref struct {
	Name string
}

func (Ref) exprNode() {}

// Literal is a constant. Expressions always render literals inline so the
// same expression compares equal in SELECT and GROUP BY.
type Literal struct {
	Value any
}

func (Literal) exprNode() {}

// Star is the bare * argument of COUNT(*).
type Star struct{}

func (Star) exprNode() {}

// Cast converts an expression to a SQL type: <expr>::<Type>.
type Cast struct {
	Expr Expr
	Type string
}

func (Cast) exprNode() {}

// Func calls a scalar or aggregate function. A non-nil Filter renders the
// aggregate FILTER (WHERE ...) clause.
type Func struct {
	Name   string
	Args   []Expr
	Filter Predicate
}

func (Func) exprNode() {}

// Binary applies an arithmetic operator: (<left> <op> <right>).
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// Neg negates an expression.
type Neg struct {
	Expr Expr
}

func (Neg) exprNode() {}

// List is a list literal: [a, b, c].
type List struct {
	Items []Expr
}

func (List) exprNode() {}

// Window evaluates Func over a window: <func> OVER (PARTITION BY ...).
type Window struct {
	Func        Expr
	PartitionBy []Expr
}

func (Window) exprNode() {}

// Case is a searched CASE expression. A nil Else renders no ELSE branch.
type Case struct {
	Whens []When
	Else  Expr
}

func (Case) exprNode() {}

// When is one CASE branch.
type When struct {
	Cond Predicate
	Then Expr
}

// Arithmetic operators.
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
)

// Col is shorthand for Ref{Name: name}.
func Col(name string) Ref { return Ref{Name: name} }

// Lit is shorthand for Literal{Value: v}.
func Lit(v any) Literal { return Literal{Value: v} }

// Call is shorthand for a Func without a filter.
func Call(name string, args ...Expr) Func { return Func{Name: name, Args: args} }

// Double casts e to DOUBLE.
func Double(e Expr) Cast { return Cast{Expr: e, Type: "DOUBLE"} }
