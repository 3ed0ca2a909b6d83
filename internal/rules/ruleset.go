package rules

import (
	"fmt"
	"maps"
	"slices"
)

// RuleSet is an immutable, validated rule configuration for one form or one
// grid. It may be shared by any number of engines.
type RuleSet struct {
	rules    []Rule
	parent   Values
	external External

	byTrigger map[string][]int
	watched   []string
	graph     fieldGraph
}

// NewRuleSet validates rules and builds the watched-field index and the
// dependency graph. The rule slice and the top-level parent and external maps
// are copied, so later mutation by the caller does not leak into the set.
//
// Rules without an ID are assigned "<trigger>-><target>#<index>".
// Every configuration problem is reported in a single *ConfigError.
func NewRuleSet(rules []Rule, parent Values, external External) (*RuleSet, error) {
	rs := &RuleSet{
		rules:     make([]Rule, len(rules)),
		parent:    parent.Clone(),
		external:  External{},
		byTrigger: make(map[string][]int),
	}
	copy(rs.rules, rules)
	if external != nil {
		rs.external = maps.Clone(external)
	}

	var problems []ValidationError
	seen := make(map[string]int)
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.ID == "" {
			r.ID = fmt.Sprintf("%s->%s#%d", r.Trigger.Field, r.Target(), i)
		}
		problems = append(problems, validateRule(i, *r)...)
		if prev, dup := seen[r.ID]; dup {
			problems = append(problems, ValidationError{
				RuleIndex: i,
				RuleID:    r.ID,
				Field:     "id",
				Message:   fmt.Sprintf("duplicate rule id (first declared at rules[%d])", prev),
			})
		} else {
			seen[r.ID] = i
		}
	}
	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	for i, r := range rs.rules {
		rs.byTrigger[r.Trigger.Field] = append(rs.byTrigger[r.Trigger.Field], i)
	}
	rs.watched = WatchedFields(rs.rules)
	rs.graph = buildFieldGraph(rs.rules)
	return rs, nil
}

// MustRuleSet is NewRuleSet for static rule lists; it panics on error.
func MustRuleSet(rules []Rule, parent Values, external External) *RuleSet {
	rs, err := NewRuleSet(rules, parent, external)
	if err != nil {
		panic(err)
	}
	return rs
}

func validateRule(i int, r Rule) []ValidationError {
	var errs []ValidationError
	add := func(field, msg string) {
		errs = append(errs, ValidationError{RuleIndex: i, RuleID: r.ID, Field: field, Message: msg})
	}

	if r.Trigger.Field == "" {
		add("trigger.field", "trigger field is required")
	}
	if r.Action == nil {
		add("action", "action is required")
		return errs
	}
	if r.Action.Target() == "" {
		add("action.targetField", "target field is required")
	} else if r.Action.Target() == r.Trigger.Field {
		add("action.targetField", fmt.Sprintf("rule writes its own trigger field %q", r.Trigger.Field))
	}

	switch a := r.Action.(type) {
	case Preset:
		switch a.Source {
		case SourceParent:
			if a.SourceField == "" {
				add("action.sourceField", "parent preset requires a source field")
			}
		case SourceFunc:
			if a.Fn == nil {
				add("action.fn", "preset requires a function or source \"parent\"")
			}
		default:
			add("action.source", fmt.Sprintf("unknown preset source %q", a.Source))
		}
	case Calculate:
		if a.Fn == nil {
			add("action.fn", "calculate requires a function")
		}
	case FilterOptions:
		if a.Filter == nil {
			add("action.filter", "filterOptions requires a filter function")
		}
	default:
		add("action", fmt.Sprintf("unsupported action type %T", r.Action))
	}
	return errs
}

// Rules returns a copy of the rules in declaration order.
func (rs *RuleSet) Rules() []Rule {
	return slices.Clone(rs.rules)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Rule returns the i-th rule in declaration order.
func (rs *RuleSet) Rule(i int) Rule { return rs.rules[i] }

// RulesFor returns the rules triggered by field, in declaration order.
func (rs *RuleSet) RulesFor(field string) []Rule {
	idx := rs.byTrigger[field]
	out := make([]Rule, len(idx))
	for i, j := range idx {
		out[i] = rs.rules[j]
	}
	return out
}

// Parent returns the parent record snapshot. Callers must not mutate it.
func (rs *RuleSet) Parent() Values { return rs.parent }

// External returns the reference data. Callers must not mutate it.
func (rs *RuleSet) External() External { return rs.external }

// WatchedFields returns the distinct trigger fields, sorted.
func (rs *RuleSet) WatchedFields() []string {
	return slices.Clone(rs.watched)
}

// IsWatched reports whether any rule is triggered by field.
func (rs *RuleSet) IsWatched(field string) bool {
	_, ok := rs.byTrigger[field]
	return ok
}

// WatchedFields returns the distinct trigger fields of rules, sorted. The
// result does not depend on declaration order.
func WatchedFields(rules []Rule) []string {
	set := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		set[r.Trigger.Field] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
