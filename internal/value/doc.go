// Package value provides the loosely typed field-value helpers shared by the
// rule model, the engine and the tooling around them.
//
// Form and grid field values arrive from the host as plain Go values (any).
// This package gives them three well-defined operations:
//   - Coercion: Float and Text turn arbitrary values into numbers and labels,
//     with missing or malformed input collapsing to 0 or "".
//   - Equality: Equal compares two values by their canonical encoding, so
//     1, int64(1), 1.0 and json.Number("1") are the same field value.
//   - Identity: MarshalCanonical and Hash produce a stable byte encoding
//     (sorted keys in UTF-16 order, NFC strings, shortest numbers).
//
// value imports nothing internal. Every other package may import it.
package value
