// Package rules defines the declarative rule model for field-level reactive
// forms and grids.
//
// A Rule binds a trigger field to an Action. When the trigger field changes,
// the engine runs the action, which writes a derived value into a target field
// (Preset, Calculate) or republishes a narrowed option list (FilterOptions).
//
// A RuleSet is the immutable configuration for one form, or for every row of
// one editable grid. It owns:
//   - the ordered rule list (declaration order is part of the contract)
//   - a read-only snapshot of the parent record
//   - read-only reference collections (external data)
//   - the watched-field index derived from the triggers
//   - the trigger → target dependency graph
//
// RuleSets are validated when they are built. Configuration mistakes that a
// loosely typed rule list would silently ignore (missing target, missing
// function, a rule that writes its own trigger) are rejected by NewRuleSet
// with a ConfigError listing every problem found.
//
// This package has no knowledge of field state. The engine package owns the
// per-instance snapshot and dispatch.
package rules
