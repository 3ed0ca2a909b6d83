package engine

import (
	"github.com/roach88/fieldrules/internal/rules"
)

// ObserveResult describes an Observe call.
type ObserveResult struct {
	// Passes holds one result per dispatched field, in dispatch order.
	Passes []*PassResult
	// Rounds counts the rounds that dispatched at least one field.
	Rounds int
	// Values is the observed state with every derived write applied.
	Values rules.Values
}

// Observe runs change detection over the host's full field state and
// dispatches every changed watched field, in sorted field order. Later fields
// of the round see the writes of earlier ones.
//
// With WithSettle(n), Observe then re-observes its own working state, derived
// writes included, for up to n extra rounds. A round that finds no change is
// a fixed point. Still changing after n extra rounds returns a
// PassLimitError; returning to an earlier state returns one with
// ErrCodeOscillation. The default (n = 0) never cascades.
func (e *Engine) Observe(values rules.Values, sink ValueSink) (*ObserveResult, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if sink == nil {
		sink = discardSink
	}

	res := &ObserveResult{Values: values.Clone()}
	working := res.Values
	tee := SinkFunc(func(field string, v any) {
		working[field] = v
		sink.SetValue(field, v)
	})
	history := newStateHistory()

	for round := 0; ; round++ {
		changed := e.snapshot.Diff(working)
		if len(changed) == 0 || (round > 0 && e.settle == 0) {
			return res, nil
		}
		if round > e.settle {
			e.log.Error("observe did not settle",
				"rounds", round,
				"limit", e.settle,
				"pending", changed,
			)
			return res, &PassLimitError{
				Code:    ErrCodePassLimit,
				Session: e.session,
				Rounds:  round,
				Limit:   e.settle,
				Pending: changed,
			}
		}
		if first, repeated := history.Visit(working, e.snapshot, round); repeated {
			e.log.Error("observe oscillating",
				"round", round,
				"first_seen", first,
				"pending", changed,
			)
			return res, &PassLimitError{
				Code:    ErrCodeOscillation,
				Session: e.session,
				Rounds:  round,
				Limit:   e.settle,
				Pending: changed,
			}
		}

		for _, field := range changed {
			e.snapshot.Record(field, working[field])
			pass := &PassResult{Seq: e.clock.Next(), Field: field}
			res.Passes = append(res.Passes, pass)
			if err := e.run(pass, e.rs.RulesFor(field), working.Clone(), tee); err != nil {
				return res, err
			}
		}
		res.Rounds = round + 1
	}
}
