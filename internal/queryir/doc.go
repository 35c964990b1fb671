// Package queryir provides the query intermediate representation (IR) that
// chart layers, statistics and selections build before anything is turned
// into SQL.
//
// ARCHITECTURE:
//
//	[encodings, stats, clauses] → [Query IR] → [querysql] → DuckDB
//
// Building an AST rather than concatenating strings keeps predicate
// composition structural: a cross-filter is an And of clause predicates, a
// binned selection is an Or of half-open intervals, and the same predicate
// can be rendered parameterized for execution or with inline literals for
// display.
//
// SEALED INTERFACES:
//
// Query, Source, Expr and Predicate are sealed interfaces using the marker
// method pattern. Only types in this package implement them, so backends can
// switch exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	case Replace:
//	    // Handle SELECT * REPLACE
//	case Describe:
//	    // Handle DESCRIBE
//	}
//
// VALUES:
//
// Literal values are plain Go values: string, bool, nil, any integer type,
// float32 or float64. Non-finite floats are legal; the SQL backend renders
// them as typed DOUBLE constants.
package queryir
