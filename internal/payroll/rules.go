package payroll

import (
	"github.com/roach88/fieldrules/internal/rules"
)

func calc(f func(Inputs) float64) rules.CalculateFunc {
	return func(form rules.Values) (any, error) {
		return f(FromValues(form)), nil
	}
}

var (
	totalDeal    = calc(Inputs.TotalDeal)
	dayValue     = calc(Inputs.DayValue)
	dailyTotal   = calc(Inputs.DailyTotal)
	totalHours   = calc(Inputs.TotalHours)
	totalPayable = calc(Inputs.TotalPayable)
)

// WorkerRowRules returns the rule list of the worker grid. Each input field
// refreshes the derived fields that depend on it and then the total payable,
// which always comes last for its trigger.
func WorkerRowRules() []rules.Rule {
	return []rules.Rule{
		rules.On(FieldWorker, rules.Preset{
			TargetField: FieldYieldValue,
			Source:      rules.SourceParent,
			SourceField: "taskPrice",
		}).WithID("worker-yieldValue"),

		rules.On(FieldYield, rules.Calculate{TargetField: FieldTotalDeal, Fn: totalDeal}).WithID("yield-totalDeal"),
		rules.On(FieldYield, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("yield-value"),

		rules.On(FieldYieldValue, rules.Calculate{TargetField: FieldTotalDeal, Fn: totalDeal}).WithID("yieldValue-totalDeal"),
		rules.On(FieldYieldValue, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("yieldValue-value"),

		rules.On(FieldSalary, rules.Calculate{TargetField: FieldDayValue, Fn: dayValue}).WithID("salary-dayValue"),
		rules.On(FieldSalary, rules.Calculate{TargetField: FieldDailyTotal, Fn: dailyTotal}).WithID("salary-dailyTotal"),
		rules.On(FieldSalary, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("salary-value"),

		rules.On(FieldWorkingDay, rules.Calculate{TargetField: FieldDailyTotal, Fn: dailyTotal}).WithID("workingDay-dailyTotal"),
		rules.On(FieldWorkingDay, rules.Calculate{TargetField: FieldTotalHoursYield, Fn: totalHours}).WithID("workingDay-totalHoursYield"),
		rules.On(FieldWorkingDay, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("workingDay-value"),

		rules.On(FieldBonus, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("bonus-value"),
		rules.On(FieldHoursWorked, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("hoursWorked-value"),
		rules.On(FieldPaymentMethod, rules.Calculate{TargetField: FieldValue, Fn: totalPayable}).WithID("paymentMethod-value"),
	}
}

// WorkerRowRuleSet builds the worker grid rule set over a parent order and
// reference data.
func WorkerRowRuleSet(parent rules.Values, ext rules.External) (*rules.RuleSet, error) {
	return rules.NewRuleSet(WorkerRowRules(), parent, ext)
}

// OrderFormRules returns the rule list of the order form that owns the worker
// grid: choosing a task type narrows the task options, and choosing a task
// presets its price from the task catalogue.
func OrderFormRules() []rules.Rule {
	return []rules.Rule{
		rules.On("taskType", rules.FilterOptions{
			TargetField: "task",
			Filter:      rules.MatchField("tasks", "taskTypeId", "taskType"),
		}).WithID("taskType-task-options"),
		rules.On("task", rules.Preset{
			TargetField: "taskPrice",
			Fn: func(form, _ rules.Values, ext rules.External) (any, error) {
				task := ext.Find("tasks", "_id", form["task"])
				if task == nil {
					return nil, nil
				}
				return task["price"], nil
			},
		}).WithID("task-taskPrice"),
	}
}
