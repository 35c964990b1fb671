// Package harness runs cross-filter scenarios end to end.
//
// A scenario loads a table into a fresh in-memory DuckDB database, mounts
// charts, drives their selections and asserts on the resulting filter and
// chart outputs.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: cross_filter
//	description: "Picking a carrier filters the scatter plot"
//	table: flights
//	setup:
//	  - CREATE TABLE flights (carrier VARCHAR, delay DOUBLE)
//	  - INSERT INTO flights VALUES ('AA', 5), ('UA', 35)
//	charts:
//	  - id: carriers
//	    file: ../specs/carriers.json
//	  - id: points
//	    spec:
//	      layers:
//	        - mark: point
//	          filter: true
//	          encoding: { x: { field: delay }, y: { field: delay } }
//	steps:
//	  - action: select
//	    chart: carriers
//	    selection: pick
//	    value: AA
//	assertions:
//	  - type: clause_count
//	    count: 1
//	  - type: layer_rows
//	    chart: points
//	    count: 1
//
// # Steps
//
//   - select: a click on value, optionally additive
//   - brush: an interval over x and/or y
//   - clear: clears one selection
//   - reset: asks every clause source to clear itself
//   - destroy: removes a chart
//   - set_spec, update_spec: replace or patch a chart's spec
//
// # Assertion Types
//
//   - clause_count: the filter holds exactly count clauses
//   - predicate: the rendered filter equals a string ("" for none)
//   - layer_rows: a layer published exactly count rows
//   - domain_contains: a scale domain includes every listed value
//   - layer_error: a layer's error contains a substring
//   - chart_count: exactly count charts are mounted
//
// # Deterministic Testing
//
// Every step waits until the host is idle, so results never depend on
// query timing. Snapshots are timestamped with FixedTime and golden files
// hold canonical JSON.
package harness
