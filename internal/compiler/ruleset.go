package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fieldrules/internal/expr"
	"github.com/roach88/fieldrules/internal/rules"
)

// Definition is a compiled, validated rule list. Parent and external data
// are bound later with Build, since they change per screen.
type Definition struct {
	Name        string
	Description string
	Rules       []rules.Rule
	Pos         token.Pos

	rulePos []token.Pos
}

// Build binds parent and external data into a RuleSet.
func (d *Definition) Build(parent rules.Values, ext rules.External) (*rules.RuleSet, error) {
	return rules.NewRuleSet(d.Rules, parent, ext)
}

// Cycles reports multi-hop field cycles of the rule list.
func (d *Definition) Cycles() []rules.CycleWarning {
	rs, err := d.Build(nil, nil)
	if err != nil {
		return nil
	}
	return rs.Cycles()
}

// RulePos returns the source position of the i-th rule.
func (d *Definition) RulePos(i int) token.Pos {
	if i < 0 || i >= len(d.rulePos) {
		return token.NoPos
	}
	return d.rulePos[i]
}

// CompileRuleSet parses a CUE value into a Definition. Expressions are
// compiled in env.
//
// The CUE value should be the rule set struct itself, e.g.:
//
//	v := ctx.CompileString(`ruleset: workerRow: { rules: [...] }`)
//	def, err := CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset.workerRow")), env)
func CompileRuleSet(v cue.Value, env *expr.Env) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{Pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		def.Name = strings.Trim(sels[len(sels)-1].String(), `"`)
	}

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		s, err := d.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Description = s
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Code:    ErrCodeRuleSet,
			Field:   "rules",
			Message: "rules list is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := rulesVal.List()
	if err != nil {
		return nil, &CompileError{
			Code:    ErrCodeRuleSet,
			Field:   "rules",
			Message: "rules must be a list",
			Pos:     rulesVal.Pos(),
		}
	}

	for i := 0; iter.Next(); i++ {
		rv := iter.Value()
		rule, err := compileRule(rv, i, env)
		if err != nil {
			return nil, err
		}
		def.Rules = append(def.Rules, rule)
		def.rulePos = append(def.rulePos, rv.Pos())
	}

	rs, err := rules.NewRuleSet(def.Rules, nil, nil)
	if err != nil {
		return nil, def.configError(err)
	}
	// keep the auto-assigned ids
	def.Rules = rs.Rules()
	return def, nil
}

// configError maps the first rule validation problem to its source position.
func (d *Definition) configError(err error) error {
	var ce *rules.ConfigError
	if !errors.As(err, &ce) || len(ce.Problems) == 0 {
		return err
	}
	p := ce.Problems[0]
	msg := p.Message
	if n := len(ce.Problems); n > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n-1)
	}
	return &CompileError{
		Code:    ErrCodeRuleConfig,
		Field:   fmt.Sprintf("rules[%d].%s", p.RuleIndex, p.Field),
		Message: msg,
		Pos:     d.RulePos(p.RuleIndex),
	}
}

func compileRule(v cue.Value, idx int, env *expr.Env) (rules.Rule, error) {
	field := func(name string) string { return fmt.Sprintf("rules[%d].%s", idx, name) }
	var rule rules.Rule

	if idv := v.LookupPath(cue.ParsePath("id")); idv.Exists() {
		id, err := idv.String()
		if err != nil {
			return rule, formatCUEError(err)
		}
		rule.ID = id
	}

	trigger, err := parseTrigger(v, field("trigger"))
	if err != nil {
		return rule, err
	}
	rule.Trigger = trigger

	av := v.LookupPath(cue.ParsePath("action"))
	if !av.Exists() {
		return rule, &CompileError{
			Code:    ErrCodeAction,
			Field:   field("action"),
			Message: "action is required",
			Pos:     v.Pos(),
		}
	}
	rule.Action, err = parseAction(av, field("action"), env)
	if err != nil {
		return rule, err
	}
	return rule, nil
}

// parseTrigger accepts `trigger: "salary"` or `trigger: {field: "salary"}`.
func parseTrigger(v cue.Value, field string) (rules.Trigger, error) {
	tv := v.LookupPath(cue.ParsePath("trigger"))
	if !tv.Exists() {
		return rules.Trigger{}, &CompileError{
			Code:    ErrCodeTrigger,
			Field:   field,
			Message: "trigger is required",
			Pos:     v.Pos(),
		}
	}
	if tv.IncompleteKind() == cue.StructKind {
		tv = tv.LookupPath(cue.ParsePath("field"))
		if !tv.Exists() {
			return rules.Trigger{}, &CompileError{
				Code:    ErrCodeTrigger,
				Field:   field + ".field",
				Message: "trigger requires a field",
				Pos:     v.Pos(),
			}
		}
	}
	name, err := tv.String()
	if err != nil {
		return rules.Trigger{}, &CompileError{
			Code:    ErrCodeTrigger,
			Field:   field,
			Message: "trigger must be a field name",
			Pos:     tv.Pos(),
		}
	}
	return rules.Trigger{Field: name}, nil
}
