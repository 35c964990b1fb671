package engine

import "sync/atomic"

// Generation numbers superseded work. Starting a spec application takes
// Next; its completion is installed only if IsCurrent still holds for the
// number it was given. Safe for concurrent use.
type Generation struct {
	n atomic.Int64
}

// NewGeneration returns a counter at zero.
func NewGeneration() *Generation {
	return &Generation{}
}

// Next supersedes all earlier numbers and returns the new one.
func (g *Generation) Next() int64 {
	return g.n.Add(1)
}

// Current returns the latest number handed out, or zero.
func (g *Generation) Current() int64 {
	return g.n.Load()
}

// IsCurrent reports whether n has not been superseded.
func (g *Generation) IsCurrent(n int64) bool {
	return g.n.Load() == n
}
