package payroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldrules/internal/rules"
)

func sampleRow(method Method) rules.Values {
	return rules.Values{
		FieldYield:         10,
		FieldYieldValue:    5,
		FieldSalary:        300000,
		FieldWorkingDay:    1,
		FieldBonus:         2000,
		FieldPaymentMethod: string(method),
	}
}

func TestDerivations(t *testing.T) {
	in := FromValues(sampleRow(MethodDeal))
	assert.InDelta(t, 50, in.TotalDeal(), 1e-9)
	assert.InDelta(t, 10000, in.DayValue(), 1e-9)
	assert.InDelta(t, 10000, in.DailyTotal(), 1e-9)
	assert.InDelta(t, 8, in.TotalHours(), 1e-9)
}

func TestTotalPayable(t *testing.T) {
	tests := []struct {
		method Method
		extra  rules.Values
		want   float64
	}{
		{MethodDeal, nil, 2050},
		{MethodWorkday, nil, 12000},
		{MethodGreater, nil, 12000},
		{MethodDealPlusDay, nil, 12050},
		{MethodHourly, rules.Values{FieldHoursWorked: 4}, 7000},
		{MethodHourly, rules.Values{FieldTotalHoursYield: 8}, 12000},
		{MethodBonusOnly, nil, 2000},
		{"unknown", nil, 0},
		{"", nil, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			row := sampleRow(tt.method)
			for k, v := range tt.extra {
				row[k] = v
			}
			assert.InDelta(t, tt.want, FromValues(row).TotalPayable(), 1e-9)
		})
	}
}

func TestGreaterPrefersDeal(t *testing.T) {
	row := sampleRow(MethodGreater)
	row[FieldYield] = 5000
	assert.InDelta(t, 25000+2000, FromValues(row).TotalPayable(), 1e-9)
}

func TestFromValues_GarbageIsZero(t *testing.T) {
	in := FromValues(rules.Values{FieldYield: "abc", FieldSalary: nil, FieldBonus: "150"})
	assert.Zero(t, in.Yield)
	assert.Zero(t, in.Salary)
	assert.InDelta(t, 150, in.Bonus, 1e-9)
}

func TestWorkerRowRuleSet_Valid(t *testing.T) {
	rs, err := WorkerRowRuleSet(rules.Values{"taskPrice": 1500}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		FieldBonus, FieldHoursWorked, FieldPaymentMethod, FieldSalary,
		FieldWorker, FieldWorkingDay, FieldYield, FieldYieldValue,
	}, rs.WatchedFields())
	assert.Empty(t, rs.Cycles())

	// value is last among each trigger's rules
	for _, f := range rs.WatchedFields() {
		rr := rs.RulesFor(f)
		if f == FieldWorker {
			continue
		}
		assert.Equal(t, FieldValue, rr[len(rr)-1].Target(), f)
	}
}

func TestOrderFormRules_Valid(t *testing.T) {
	rs, err := rules.NewRuleSet(OrderFormRules(), nil, rules.External{
		"tasks": []rules.Entity{{"_id": "t1", "price": 1500}},
	})
	require.NoError(t, err)

	preset := rs.RulesFor("task")[0].Action.(rules.Preset)
	got, err := preset.Fn(rules.Values{"task": "t1"}, nil, rs.External())
	require.NoError(t, err)
	assert.Equal(t, 1500, got)

	got, err = preset.Fn(rules.Values{"task": "nope"}, nil, rs.External())
	require.NoError(t, err)
	assert.Nil(t, got)
}
