package encoding

import (
	"github.com/aclements/go-moremath/vec"

	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/spec"
)

// EcdfSamples is the number of evenly spaced quantiles an eCDF expands to.
const EcdfSamples = 201

// DefaultQuantile is used by the quantile aggregate when none is given.
const DefaultQuantile = 0.5

var aggregateFuncs = map[string]string{
	spec.AggCount:    "COUNT",
	spec.AggMin:      "MIN",
	spec.AggMax:      "MAX",
	spec.AggMean:     "AVG",
	spec.AggMedian:   "MEDIAN",
	spec.AggStdev:    "STDDEV_SAMP",
	spec.AggVariance: "VAR_SAMP",
	spec.AggSum:      "SUM",
	spec.AggProduct:  "PRODUCT",
	spec.AggQuantile: "QUANTILE_CONT",
}

// IsAggregate reports whether name is a supported aggregate.
func IsAggregate(name string) bool {
	if _, ok := aggregateFuncs[name]; ok {
		return true
	}
	return name == spec.AggEcdfValue || name == spec.AggEcdfRank
}

// IsEcdf reports whether name expands a field to eCDF rows.
func IsEcdf(name string) bool {
	return name == spec.AggEcdfValue || name == spec.AggEcdfRank
}

// ecdfRanks returns the quantile fractions 0, 1/200, ..., 1.
func ecdfRanks() queryir.List {
	fractions := vec.Linspace(0, 1, EcdfSamples)
	items := make([]queryir.Expr, len(fractions))
	for i, f := range fractions {
		items[i] = queryir.Lit(f)
	}
	return queryir.List{Items: items}
}

// aggregateExpr compiles an aggregate encoding. It returns a SpecError for
// unknown names and for aggregates that need a field.
func aggregateExpr(ch spec.Channel, agg *spec.AggregateEncoding) (queryir.Expr, error) {
	if !IsAggregate(agg.Aggregate) {
		return nil, NewSpecError(ErrCodeUnknownAggregate, ch, "unknown aggregate %q", agg.Aggregate)
	}
	if agg.Field == "" {
		if agg.Aggregate == spec.AggCount {
			return queryir.Call("COUNT", queryir.Star{}), nil
		}
		return nil, NewSpecError(ErrCodeMissingField, ch, "aggregate %q requires a field", agg.Aggregate)
	}
	field := queryir.Col(agg.Field)

	switch agg.Aggregate {
	case spec.AggEcdfValue:
		return queryir.Call("UNNEST", queryir.Call("QUANTILE_CONT", field, ecdfRanks())), nil
	case spec.AggEcdfRank:
		return queryir.Call("UNNEST", ecdfRanks()), nil
	case spec.AggQuantile:
		q := DefaultQuantile
		if agg.Quantile != nil {
			q = *agg.Quantile
		}
		return queryir.Call("QUANTILE_CONT", field, queryir.Lit(q)), nil
	case spec.AggCount:
		return queryir.Call("COUNT", field), nil
	}
	return queryir.Call(aggregateFuncs[agg.Aggregate], field), nil
}
