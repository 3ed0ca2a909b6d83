// Package harness runs rule scenarios against the engine and checks the
// resulting trace and field state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: worker_row_trato
//	description: "Deal payment from yield and yield value"
//	rules: ../rules            # directory of .cue rule files
//	ruleset: workerRow         # rule set name within it
//	refdata: ref.yaml          # optional parent/external snapshot
//	parent: { taskPrice: 1500 }
//	initial: { paymentMethod: trato }
//	init: true                 # run initialization rules first
//	steps:
//	  - field: yield
//	    value: 400
//	    expect:
//	      values: { totalDeal: 600000 }
//	assertions:
//	  - type: rule_applied
//	    rule: yield-totalDeal
//	  - type: final_values
//	    values: { value: 600000 }
//
// Instead of rules/ruleset a scenario may name a built-in rule set with
// `builtin: payroll/worker-row` or `builtin: payroll/order-form`.
//
// Reference data may also come from a read-only SQLite database:
//
//	sqlite:
//	  path: ref.db
//	  tables:
//	    - { table: task, as: tasks, where: { active: 1 }, order_by: _id }
//	  parent: { table: orders, column: _id, id: o1 }
//
// Layers apply in order refdata, sqlite, then inline parent/external.
//
// A step either sets one field (field/value) and runs its rules, or applies
// a batch of host edits (set) and observes the whole state.
//
// # Assertion Types
//
//   - rule_applied: a rule ran, optionally with a given result value
//   - rule_order: rules ran in the given relative order
//   - rule_count: a rule ran exactly N times
//   - final_values: the final field state contains the given values
//   - options: the last option list delivered for a field has these values
//
// # Deterministic Testing
//
// Each scenario runs with a fixed session id, a fresh logical clock and a
// fixed today(), so the trace is reproducible and can be compared against
// golden files.
package harness
