package engine

import (
	"fmt"

	"github.com/roach88/fieldrules/internal/rules"
)

// PassResult describes one dispatch pass.
type PassResult struct {
	Seq int64 `json:"seq"`
	// Field is the trigger field; empty for an initialization pass.
	Field   string    `json:"field,omitempty"`
	Init    bool      `json:"init,omitempty"`
	Skipped bool      `json:"skipped,omitempty"`
	Applied []Applied `json:"applied,omitempty"`
	Errors  []error   `json:"-"`
}

// Applied records one rule that ran to completion. For FilterOptions, Value
// holds the []rules.Option handed to the callback.
type Applied struct {
	RuleID string     `json:"rule_id"`
	Kind   rules.Kind `json:"kind"`
	Target string     `json:"target"`
	Value  any        `json:"value"`
}

// Writes returns the field writes of the pass in order, later writes to the
// same target replacing earlier ones.
func (r *PassResult) Writes() rules.Values {
	out := rules.Values{}
	for _, a := range r.Applied {
		if a.Kind != rules.KindFilterOptions {
			out[a.Target] = a.Value
		}
	}
	return out
}

// run executes rs in order against working. Writes go to sink and working.
func (e *Engine) run(res *PassResult, rs []rules.Rule, working rules.Values, sink ValueSink) error {
	if sink == nil {
		sink = discardSink
	}
	for _, r := range rs {
		out, ok, err := e.apply(r, working)
		if err != nil {
			rerr := e.ruleError(res.Field, r, err)
			res.Errors = append(res.Errors, rerr)
			if e.policy == AbortPass {
				e.log.Error("rule failed, pass aborted",
					"rule_id", r.ID,
					"field", res.Field,
					"seq", res.Seq,
					"error", err,
				)
				return rerr
			}
			e.log.Warn("rule failed, pass continues",
				"rule_id", r.ID,
				"field", res.Field,
				"seq", res.Seq,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		res.Applied = append(res.Applied, Applied{
			RuleID: r.ID,
			Kind:   r.Action.Kind(),
			Target: r.Target(),
			Value:  out,
		})
		if r.Action.Kind() != rules.KindFilterOptions {
			working[r.Target()] = out
			sink.SetValue(r.Target(), out)
		}
	}
	return nil
}

func (e *Engine) ruleError(field string, r rules.Rule, err error) *RuleError {
	code := ErrCodeRuleFailed
	if _, ok := err.(panicError); ok {
		code = ErrCodeRulePanicked
	}
	return &RuleError{
		Code:    code,
		Session: e.session,
		RuleID:  r.ID,
		Kind:    r.Action.Kind(),
		Field:   field,
		Target:  r.Target(),
		Err:     err,
	}
}

type panicError struct {
	value any
}

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// apply runs one rule. ok is false when the rule had nothing to do (a
// FilterOptions target without a registered callback).
func (e *Engine) apply(r rules.Rule, working rules.Values) (out any, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, ok, err = nil, false, panicError{value: p}
		}
	}()

	switch a := r.Action.(type) {
	case rules.Preset:
		out, err = e.applyPreset(a, working)
		ok = err == nil
	case rules.Calculate:
		out, err = a.Fn(working)
		ok = err == nil
	case rules.FilterOptions:
		out, ok, err = e.applyFilter(r.ID, a, working)
	default:
		return nil, false, fmt.Errorf("unsupported action type %T", r.Action)
	}

	if e.verbose && err == nil && ok {
		e.log.Debug("rule applied",
			"rule_id", r.ID,
			"kind", r.Action.Kind(),
			"target", r.Target(),
			"inputs", working.Clone(),
			"result", out,
		)
	}
	return out, ok, err
}

func (e *Engine) applyPreset(a rules.Preset, working rules.Values) (any, error) {
	if a.Source == rules.SourceParent {
		return e.rs.Parent()[a.SourceField], nil
	}
	return a.Fn(working, e.rs.Parent(), e.rs.External())
}

func (e *Engine) applyFilter(id string, a rules.FilterOptions, working rules.Values) (any, bool, error) {
	cb, registered := e.callbacks[a.TargetField]
	if !registered {
		e.log.Debug("filterOptions skipped: no callback registered",
			"rule_id", id,
			"target", a.TargetField,
		)
		return nil, false, nil
	}
	entities, err := a.Filter(e.rs.External(), working)
	if err != nil {
		return nil, false, err
	}
	options := rules.MapOptions(entities, a.MapperOrDefault())
	cb(options)
	return options, true, nil
}
