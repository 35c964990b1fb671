package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/crossplot/internal/encoding"
	"github.com/roach88/crossplot/internal/layer"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/querysql"
	"github.com/roach88/crossplot/internal/spec"
)

// LayerSQL is the compiled query of one layer.
type LayerSQL struct {
	Index    int       `json:"index"`
	Mark     spec.Mark `json:"mark"`
	Static   bool      `json:"static,omitempty"`
	Filtered bool      `json:"filtered,omitempty"`
	SQL      string    `json:"sql,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Compile builds every layer of s against source and renders its unfiltered
// query as inline SQL. Layers the runtime would omit carry the reason in
// Error. Statistics query failures abort compilation.
func Compile(ctx context.Context, stats encoding.StatsSource, source queryir.Source, s spec.ChartSpec) ([]LayerSQL, error) {
	env := encoding.Env{Stats: stats, Scales: s.Scale}
	sqlc := querysql.NewInlineCompiler()

	out := make([]LayerSQL, 0, len(s.Layers))
	for i, l := range s.Layers {
		ls := LayerSQL{Index: i, Mark: l.Mark}
		b, err := layer.Build(ctx, env, source, l, i)
		if err != nil {
			var se *encoding.SpecError
			if !errors.As(err, &se) {
				return nil, fmt.Errorf("compile: %w", err)
			}
			ls.Error = se.Error()
			out = append(out, ls)
			continue
		}
		ls.Filtered = b.Filtered
		if b.IsStatic() {
			ls.Static = true
			out = append(out, ls)
			continue
		}
		sql, _, err := sqlc.Compile(b.Query(nil))
		if err != nil {
			return nil, fmt.Errorf("compile layer %d: %w", i, err)
		}
		ls.SQL = sql
		out = append(out, ls)
	}
	return out, nil
}
