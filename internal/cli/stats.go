package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/stats"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	DatabaseOptions
}

// FieldSummary is the JSON form of one field's statistics. Undefined
// numeric summaries are null.
type FieldSummary struct {
	Field        string               `json:"field"`
	Kind         string               `json:"kind"`
	Quantitative *QuantitativeSummary `json:"quantitative,omitempty"`
	Nominal      *stats.Nominal       `json:"nominal,omitempty"`
}

// QuantitativeSummary mirrors stats.Quantitative with NaN mapped to null.
type QuantitativeSummary struct {
	Count          int64    `json:"count"`
	Min            *float64 `json:"min"`
	Max            *float64 `json:"max"`
	Mean           *float64 `json:"mean"`
	Median         *float64 `json:"median"`
	MinPositive    *float64 `json:"minPositive"`
	CountNonFinite int64    `json:"countNonFinite"`
}

// StatsResult holds the statistics of every requested field.
type StatsResult struct {
	Table  string         `json:"table"`
	Fields []FieldSummary `json:"fields"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <field>...",
		Short: "Show field statistics used for binning and scales",
		Long: `Compute the statistics the compiler reads when it bins a field or
infers a scale domain.

Numeric fields report count, extent, mean, median and the smallest
positive value. String fields report their most frequent levels.

Examples:
  crossplot stats delay --db flights.duckdb --table flights
  crossplot stats carrier delay --table flights --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), opts, args, cmd)
		},
	}

	addDatabaseFlags(cmd, &opts.DatabaseOptions)

	return cmd
}

func runStats(ctx context.Context, opts *StatsOptions, fields []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	db, err := openDatabase(ctx, &opts.DatabaseOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "opening database", err)
	}
	defer db.Close()

	src := queryir.Table{Name: opts.Table}
	result := StatsResult{Table: opts.Table, Fields: make([]FieldSummary, 0, len(fields))}
	for _, field := range fields {
		fs, err := stats.Compute(ctx, db, src, field)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeQuery, fmt.Sprintf("computing stats for %s", field), err)
		}
		result.Fields = append(result.Fields, summarize(field, fs))
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputStatsText(formatter, result)
}

func summarize(field string, fs *stats.FieldStats) FieldSummary {
	out := FieldSummary{Field: field, Kind: "unsupported"}
	switch {
	case fs == nil:
	case fs.Quantitative != nil:
		q := fs.Quantitative
		out.Kind = "quantitative"
		out.Quantitative = &QuantitativeSummary{
			Count:          q.Count,
			Min:            finite(q.Min),
			Max:            finite(q.Max),
			Mean:           finite(q.Mean),
			Median:         finite(q.Median),
			MinPositive:    finite(q.MinPositive),
			CountNonFinite: q.CountNonFinite,
		}
	case fs.Nominal != nil:
		out.Kind = "nominal"
		out.Nominal = fs.Nominal
	}
	return out
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func outputStatsText(f *OutputFormatter, result StatsResult) error {
	w := f.Writer
	for i, fs := range result.Fields {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", fs.Field, fs.Kind)
		switch {
		case fs.Quantitative != nil:
			q := fs.Quantitative
			fmt.Fprintf(w, "  count:        %d\n", q.Count)
			fmt.Fprintf(w, "  min:          %s\n", formatStat(q.Min))
			fmt.Fprintf(w, "  max:          %s\n", formatStat(q.Max))
			fmt.Fprintf(w, "  mean:         %s\n", formatStat(q.Mean))
			fmt.Fprintf(w, "  median:       %s\n", formatStat(q.Median))
			fmt.Fprintf(w, "  min positive: %s\n", formatStat(q.MinPositive))
			if q.CountNonFinite > 0 {
				fmt.Fprintf(w, "  non-finite:   %d\n", q.CountNonFinite)
			}
		case fs.Nominal != nil:
			n := fs.Nominal
			for _, l := range n.Levels {
				fmt.Fprintf(w, "  %-20s %d\n", l.Value, l.Count)
			}
			if n.NumOtherLevels > 0 {
				fmt.Fprintf(w, "  (%d other levels, %d rows)\n", n.NumOtherLevels, n.OtherCount)
			}
			if n.NullCount > 0 {
				fmt.Fprintf(w, "  %-20s %d\n", "(null)", n.NullCount)
			}
		}
	}
	return nil
}

func formatStat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}
