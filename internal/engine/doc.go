// Package engine evaluates a rules.RuleSet against the live field state of one
// form or one grid row.
//
// ARCHITECTURE:
//
// One Engine per form instance (or per grid row). The engine owns:
//   - a Snapshot of the last value seen for each watched field (change detection)
//   - the option-filter callback table for its FilterOptions targets
//   - a logical Clock stamping each pass
//
// The RuleSet is shared and read-only.
//
// Pass Flow (ExecuteRules):
//  1. Record (field, value) in the snapshot; an unchanged value ends the pass.
//  2. Copy the host's values into a working set with field = value.
//  3. Run every rule triggered by field, in declaration order.
//  4. Each write goes to the host's ValueSink and into the working set, so
//     later rules of the same pass see earlier results.
//
// Writes never re-enter dispatch and never update the snapshot: the snapshot
// only moves when the host reports a value. Multi-hop derivations are either
// expressed as extra rules on the originating trigger or, with WithSettle,
// driven by Observe re-reading the host state for a bounded number of rounds.
//
// CONCURRENCY:
//
// An Engine is synchronous and performs no I/O. It is not safe for concurrent
// use; the host calls it from its field-change path. Separate engines over the
// same RuleSet may run on separate goroutines.
package engine
