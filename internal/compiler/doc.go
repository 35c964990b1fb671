// Package compiler loads chart spec files and checks them before they reach
// the runtime.
//
// Spec files may be JSON, YAML or CUE. Every format is normalized to JSON
// and decoded into a spec.ChartSpec. Validate runs two passes and collects
// every error rather than stopping at the first:
//
//   - a structural pass that unifies the document with the embedded CUE
//     schema (#ChartSpec in schema.cue)
//   - a semantic pass over the decoded spec for rules the schema cannot
//     express, such as encoding tag exclusivity
//
// The runtime is lenient and drops invalid layers with a warning; this
// package is what `crossplot validate` uses to reject them up front.
//
// Compile builds each layer's query against a live backend and renders it
// as inline SQL, which is what `crossplot compile` prints.
package compiler
