package queryir

// Query represents a complete statement.
type Query interface {
	queryNode()
}

// Source is the FROM clause of a Select.
type Source interface {
	sourceNode()
}

// Select is a single SELECT statement.
//
// Columns must not be empty. GroupBy lists grouping expressions; the
// backend renders them in order. OrderBy makes row order deterministic.
// Limit of zero means no limit.
type Select struct {
	Columns  []Column
	Distinct bool
	From     Source
	Where    Predicate
	GroupBy  []Expr
	OrderBy  []Order
	Limit    int
}

func (Select) queryNode() {}

// Replace rewrites columns of an inner query while keeping all others:
//
//	SELECT * REPLACE (<expr> AS <alias>, ...) FROM (<inner>)
type Replace struct {
	From    Query
	Columns []Column
	OrderBy []Order
}

func (Replace) queryNode() {}

// Describe reports the result schema of a query without running it.
type Describe struct {
	Query Query
}

func (Describe) queryNode() {}

// Column is one SELECT item. An empty Alias emits the bare expression.
type Column struct {
	Expr  Expr
	Alias string
}

// Order is one ORDER BY key.
type Order struct {
	Expr Expr
	Desc bool
}

// Table names a table, optionally schema-qualified ("main.flights").
type Table struct {
	Name string
}

func (Table) sourceNode() {}

// Subquery nests a query as a FROM source.
type Subquery struct {
	Query Query
}

func (Subquery) sourceNode() {}

// SQLSource is a user-provided SQL query used as a FROM source. Every
// occurrence of Placeholder inside SQL is replaced with the rendered Filter
// predicate, or TRUE when Filter is nil.
type SQLSource struct {
	SQL         string
	Placeholder string
	Filter      Predicate
}

func (SQLSource) sourceNode() {}
