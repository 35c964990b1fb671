// Package chart is the runtime that owns chart specifications.
//
// A Host holds everything charts share: the scheduler loop, the live query
// coordinator, the field statistics cache and the cross-filter selection.
// A Chart owns one ChartSpec. Setting a spec builds its layers off the
// loop (statistics queries may run), then installs them on the loop,
// connects one query client per layer and publishes typed outputs through
// engine cells.
//
// Every Chart and Host method except Host.Do, Host.Drain and Host.Close
// must run on the scheduler loop.
package chart
