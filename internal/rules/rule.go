package rules

import (
	"maps"

	"github.com/roach88/fieldrules/internal/value"
)

// Values is the field state of one form or grid row: field name → value.
// The parent record is also carried as Values.
type Values map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Float returns the field coerced to a number (missing or malformed → 0).
func (v Values) Float(field string) float64 {
	return value.Float(v[field])
}

// Text returns the field rendered as a string (missing → "").
func (v Values) Text(field string) string {
	return value.Text(v[field])
}

// Entity is one record of a reference collection (a worker, a task, a variety).
type Entity map[string]any

// External holds reference collections and scalar context values available to
// rule actions. Collection values are lists of entities; anything else is a
// primitive.
type External map[string]any

// List returns the named collection as entities. Lists of plain
// map[string]any (as decoded from YAML or JSON) are converted. Missing names
// and non-list values yield nil.
func (e External) List(name string) []Entity {
	switch list := e[name].(type) {
	case []Entity:
		return list
	case []map[string]any:
		out := make([]Entity, len(list))
		for i, m := range list {
			out[i] = Entity(m)
		}
		return out
	case []any:
		out := make([]Entity, 0, len(list))
		for _, item := range list {
			switch m := item.(type) {
			case Entity:
				out = append(out, m)
			case map[string]any:
				out = append(out, Entity(m))
			}
		}
		return out
	}
	return nil
}

// Find returns the first entity of the named collection whose key field equals
// id, or nil when nothing matches.
func (e External) Find(name, key string, id any) Entity {
	if value.IsEmpty(id) {
		return nil
	}
	for _, ent := range e.List(name) {
		if value.Equal(ent[key], id) {
			return ent
		}
	}
	return nil
}

// Trigger names the field whose change fires a rule.
type Trigger struct {
	Field string `json:"field"`
}

// Rule is one reactive relationship: when Trigger.Field changes, run Action.
type Rule struct {
	// ID identifies the rule in logs, pass results and errors. NewRuleSet
	// assigns "<trigger>-><target>#<index>" when empty.
	ID      string  `json:"id"`
	Trigger Trigger `json:"trigger"`
	Action  Action  `json:"-"`
}

// On is shorthand for building a rule in Go rule lists:
//
//	rules.On("salary", rules.Calculate{TargetField: "dailyTotal", Fn: dailyTotal})
func On(field string, action Action) Rule {
	return Rule{Trigger: Trigger{Field: field}, Action: action}
}

// WithID returns a copy of r with the given ID.
func (r Rule) WithID(id string) Rule {
	r.ID = id
	return r
}

// Target returns the field the rule's action affects, or "" when the rule
// has no action.
func (r Rule) Target() string {
	if r.Action == nil {
		return ""
	}
	return r.Action.Target()
}
