// Package spec defines the declarative chart specification and the helpers
// that keep it a plain JSON document.
//
// A ChartSpec is the only input a chart runtime accepts. It is mutated by
// explicit merge or replace (see Apply) and is compared by canonical hash, so
// two specs that differ only in key order or Unicode normalization are the
// same spec.
//
// This package has no internal imports. Everything else in the module
// imports spec; spec imports nothing internal.
//
// JSON conventions:
//   - Field names are camelCase, matching the wire format hosts already send.
//   - Only numbers, strings, booleans, nested objects and arrays appear, so a
//     spec round-trips through encoding/json without loss.
//   - Encodings are a tagged union; exactly one of field, aggregate or value
//     is active. Malformed encodings are preserved verbatim and reported by
//     Encoding.Err rather than failing the whole document.
package spec
