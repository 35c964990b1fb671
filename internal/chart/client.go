package chart

import (
	"log/slog"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/layer"
	"github.com/roach88/crossplot/internal/queryir"
	"github.com/roach88/crossplot/internal/spec"
)

// layerClient is the live query client of one layer.
type layerClient struct {
	chart *Chart
	id    string
	index int
	layer spec.Layer
	built *layer.Built

	connected bool
	ready     bool
	rows      []layer.Row
	err       error
}

func (l *layerClient) ID() string { return l.id }

func (l *layerClient) Query(filter queryir.Predicate) (queryir.Query, error) {
	return l.built.Query(filter), nil
}

func (l *layerClient) Result(t *conn.Table, err error) {
	if !l.connected || l.chart.destroyed {
		return
	}
	l.ready = true
	if err != nil {
		slog.Warn("layer query failed", "chart", l.chart.id, "layer", l.index, "error", err)
		l.rows, l.err = nil, err
	} else {
		l.rows, l.err = l.built.Rows(t), nil
	}
	l.chart.publish()
}
