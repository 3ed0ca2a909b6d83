package harness

import (
	"github.com/roach88/fieldrules/internal/engine"
	"github.com/roach88/fieldrules/internal/rules"
)

// TraceEvent is one engine pass as seen by the harness.
type TraceEvent struct {
	Step    int            `json:"step"`
	Seq     int64          `json:"seq"`
	Field   string         `json:"field,omitempty"`
	Init    bool           `json:"init,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
	Applied []AppliedEvent `json:"applied,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// AppliedEvent is one rule application within a pass.
type AppliedEvent struct {
	RuleID string     `json:"rule_id"`
	Kind   rules.Kind `json:"kind"`
	Target string     `json:"target"`
	Value  any        `json:"value"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Session is the engine session id used for the run.
	Session string `json:"session"`

	// Trace holds every pass in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Values is the final host field state.
	Values rules.Values `json:"values"`

	// Options holds the last option list delivered per filtered field.
	Options map[string][]rules.Option `json:"options,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Values:  rules.Values{},
		Options: map[string][]rules.Option{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPass appends a pass to the trace. Option lists are stored as plain
// value/label maps so the trace stays serializable.
func (r *Result) AddPass(step int, p *engine.PassResult, err error) {
	ev := TraceEvent{
		Step:    step,
		Seq:     p.Seq,
		Field:   p.Field,
		Init:    p.Init,
		Skipped: p.Skipped,
	}
	for _, a := range p.Applied {
		v := a.Value
		if opts, ok := v.([]rules.Option); ok {
			v = optionMaps(opts)
		}
		ev.Applied = append(ev.Applied, AppliedEvent{
			RuleID: a.RuleID,
			Kind:   a.Kind,
			Target: a.Target,
			Value:  v,
		})
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.Trace = append(r.Trace, ev)
}

func optionMaps(opts []rules.Option) []any {
	out := make([]any, len(opts))
	for i, o := range opts {
		out[i] = map[string]any{"value": o.Value, "label": o.Label}
	}
	return out
}
