package queryir

// Predicate is a boolean condition.
type Predicate interface {
	predicateNode()
}

// Comparison operators.
const (
	OpEq = "="
	OpNe = "<>"
	OpLt = "<"
	OpLe = "<="
	OpGt = ">"
	OpGe = ">="
)

// Compare compares an expression with a value: <expr> <op> <value>.
type Compare struct {
	Expr  Expr
	Op    string
	Value any
}

func (Compare) predicateNode() {}

// Between is the closed range test <expr> BETWEEN <lo> AND <hi>.
type Between struct {
	Expr Expr
	Lo   any
	Hi   any
}

func (Between) predicateNode() {}

// In tests set membership. An empty Values list is always false; callers
// that mean "no filter" should use a nil Predicate instead.
type In struct {
	Expr   Expr
	Values []any
	Not    bool
}

func (In) predicateNode() {}

// IsNull tests for NULL. Not inverts the test.
type IsNull struct {
	Expr Expr
	Not  bool
}

func (IsNull) predicateNode() {}

// IsFinite tests isfinite(<expr>::DOUBLE). Not inverts the test.
type IsFinite struct {
	Expr Expr
	Not  bool
}

func (IsFinite) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// AllOf conjoins the non-nil predicates. It returns nil when none remain and
// the predicate itself when exactly one remains.
func AllOf(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// AnyOf disjoins the non-nil predicates, with the same collapsing rules as
// AllOf.
func AnyOf(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Or{Predicates: kept}
}
