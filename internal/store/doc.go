// Package store provides SQLite-backed durable storage for crossplot
// snapshots.
//
// A snapshot is a chart.AppState saved under a name. The store keeps:
//   - Specs: chart specs keyed by their content hash, shared between snapshots
//   - Snapshots: one row per saved state, unique per (name, content hash)
//   - Snapshot charts: the spec hash and interaction state of each chart
//
// Saving identical content under the same name twice returns the first
// snapshot's id. The content hash excludes the timestamp.
//
// All JSON columns hold canonical JSON produced by spec.MarshalCanonical,
// and every listing is ordered by id so results do not depend on insertion
// timing.
//
// Open applies pragmas (WAL journal, synchronous NORMAL, a busy timeout and
// foreign keys) and runs pending schema migrations tracked in
// PRAGMA user_version. WithBusyTimeout and WithSynchronous override the
// defaults.
package store
