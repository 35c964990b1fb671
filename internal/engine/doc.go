// Package engine is the reactive runtime shared by every chart: a
// single-writer task loop, live query clients bound to a cross-filter, and
// observable cells.
//
// ARCHITECTURE:
//
// Single-Writer Task Loop:
// All chart state is mutated by tasks run one at a time by the Scheduler.
// Queries execute on worker goroutines started with Scheduler.Go; each
// worker's completion is posted back to the loop as a task. Between a
// query's start and its completion other tasks may run, so completions must
// check that the state they were issued for is still current.
//
// Cancellation By Identity:
// Work that can be superseded carries a number taken from a Generation (a spec
// generation, a client sequence). A completion whose number is no longer
// current is dropped silently.
//
// Live Clients:
// The Coordinator re-runs a client's query whenever the client's filter
// selection changes its predicate, and delivers results to the client on
// the loop.
package engine
