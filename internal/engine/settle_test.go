package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/testutil"
	"github.com/roach88/fieldrules/internal/value"
)

func chainedRuleSet() *rules.RuleSet {
	return rules.MustRuleSet([]rules.Rule{
		rules.On("salary", rules.Calculate{TargetField: "dailyTotal", Fn: calcFn(func(v rules.Values) any {
			return v.Float("salary") / 30
		})}),
		rules.On("dailyTotal", rules.Calculate{TargetField: "value", Fn: calcFn(func(v rules.Values) any {
			return v.Float("dailyTotal") + v.Float("bonus")
		})}),
	}, nil, nil)
}

func TestObserve_DefaultDoesNotCascade(t *testing.T) {
	e := newTestEngine(t, chainedRuleSet())
	sink := testutil.NewRecordingSink(rules.Values{"salary": 300000, "bonus": 2000})

	res, err := e.Observe(sink.Values(), sink)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, []string{"dailyTotal"}, sink.Fields())
	assert.NotContains(t, sink.Values(), "value")

	// the next observation picks up the derived field
	res, err = e.Observe(sink.Values(), sink)
	require.NoError(t, err)
	require.Len(t, res.Passes, 1)
	assert.Equal(t, "dailyTotal", res.Passes[0].Field)
	assert.InDelta(t, 12000, value.Float(sink.Values()["value"]), 1e-9)
}

func TestObserve_SettlesWithinBound(t *testing.T) {
	e := newTestEngine(t, chainedRuleSet(), WithSettle(3))
	sink := testutil.NewRecordingSink(rules.Values{"salary": 300000, "bonus": 2000})

	res, err := e.Observe(sink.Values(), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rounds)
	assert.InDelta(t, 12000, value.Float(res.Values["value"]), 1e-9)
	assert.Equal(t, res.Values, sink.Values())

	// fixed point: observing again changes nothing
	res, err = e.Observe(sink.Values(), sink)
	require.NoError(t, err)
	assert.Empty(t, res.Passes)
	assert.Zero(t, res.Rounds)
}

func TestObserve_PassLimit(t *testing.T) {
	rs := rules.MustRuleSet([]rules.Rule{
		rules.On("a", rules.Calculate{TargetField: "b", Fn: calcFn(func(v rules.Values) any { return v.Float("a") + 1 })}),
		rules.On("b", rules.Calculate{TargetField: "a", Fn: calcFn(func(v rules.Values) any { return v.Float("b") + 1 })}),
	}, nil, nil)
	require.Len(t, rs.Cycles(), 1)
	e := newTestEngine(t, rs, WithSettle(3))

	res, err := e.Observe(rules.Values{"a": 0}, nil)
	require.Error(t, err)
	assert.True(t, IsPassLimitError(err))
	assert.False(t, IsOscillation(err))

	var pe *PassLimitError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, pe.Rounds)
	assert.Equal(t, 3, pe.Limit)
	assert.Equal(t, []string{"a"}, pe.Pending)
	assert.Equal(t, 4, res.Rounds)

	// pending fields are not recorded, so the host can retry
	v, _ := e.Snapshot().Value("a")
	assert.InDelta(t, 2, value.Float(v), 1e-9)
}

func TestObserve_Oscillation(t *testing.T) {
	rs := rules.MustRuleSet([]rules.Rule{
		rules.On("a", rules.Calculate{TargetField: "b", Fn: calcFn(func(v rules.Values) any { return !v["a"].(bool) })}),
		rules.On("b", rules.Calculate{TargetField: "a", Fn: calcFn(func(v rules.Values) any { return v["b"] })}),
	}, nil, nil)
	e := newTestEngine(t, rs, WithSettle(50))

	_, err := e.Observe(rules.Values{"a": true}, nil)
	require.Error(t, err)
	assert.True(t, IsOscillation(err))
	assert.True(t, IsPassLimitError(err))
	assert.Contains(t, err.Error(), "OSCILLATION")
}

func TestObserve_RuleErrorStops(t *testing.T) {
	e := newTestEngine(t, failingRuleSet())
	res, err := e.Observe(rules.Values{"a": 1}, nil)
	require.Error(t, err)
	assert.True(t, IsRuleError(err))
	require.Len(t, res.Passes, 1)
	assert.Len(t, res.Passes[0].Applied, 1)
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot([]string{"a", "b"})

	assert.Equal(t, []string{"a", "b"}, s.Diff(rules.Values{"a": 1, "b": 2, "c": 3}))
	assert.Equal(t, []string{"a"}, s.Changed(rules.Values{"a": 1}))
	assert.Empty(t, s.Changed(rules.Values{"a": 1.0}))
	assert.Equal(t, []string{"a"}, s.Changed(rules.Values{"a": 2}))

	assert.True(t, s.Record("c", []any{1, 2}))
	assert.False(t, s.Record("c", []any{1.0, 2.0}))
	assert.Equal(t, 2, s.Len())

	s.Prime(rules.Values{"b": "x", "z": 1})
	_, ok := s.Value("z")
	assert.False(t, ok, "prime only records watched fields")
	assert.Empty(t, s.Diff(rules.Values{"b": "x"}))

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestPassResult_Writes(t *testing.T) {
	r := &PassResult{Applied: []Applied{
		{Kind: rules.KindCalculate, Target: "x", Value: 1},
		{Kind: rules.KindFilterOptions, Target: "task", Value: []rules.Option{}},
		{Kind: rules.KindCalculate, Target: "x", Value: 2},
	}}
	assert.Equal(t, rules.Values{"x": 2}, r.Writes())
}
