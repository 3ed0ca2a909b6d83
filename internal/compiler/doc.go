// Package compiler turns CUE rule files into rule lists.
//
// A rule file declares named rule sets under the top-level "ruleset" field:
//
//	package rules
//
//	ruleset: workerRow: {
//		description: "worker grid"
//		rules: [
//			{id: "worker-yieldValue", trigger: "worker", action: {
//				type: "preset", targetField: "yieldValue", source: "parent", sourceField: "taskPrice"
//			}},
//			{trigger: "yield", action: {
//				type: "calculate", targetField: "totalDeal", expr: "num(form, \"yield\") * num(form, \"yieldValue\")"
//			}},
//			{trigger: "taskType", action: {
//				type: "filterOptions", targetField: "task", list: "tasks",
//				key: "taskTypeId", formField: "taskType", label: ["taskName"]
//			}},
//		]
//	}
//
// Expressions are CEL (see package expr). Preset actions take one of
// source: "parent" + sourceField, expr, or a constant value. FilterOptions
// actions take a list plus either a match predicate over item or the
// key/formField shorthand; value and label name the option mapper keys.
//
// Compile errors carry the CUE source position of the offending field.
package compiler
