// Package payroll holds the worker-row pay derivations shared by the
// reference rule lists and by rule-file expressions.
//
// Every derived figure is recomputed from primitive inputs (yield, yieldValue,
// salary, workingDay, bonus, hoursWorked). Calculators never read other
// derived fields, so the result does not depend on which rule of a pass ran
// first.
package payroll

import (
	"github.com/roach88/fieldrules/internal/rules"
)

const (
	// HoursPerWorkday converts working days into hours.
	HoursPerWorkday = 8
	// DaysPerMonth converts a monthly salary into a day value.
	DaysPerMonth = 30
)

// Method is a worker-row payment method.
type Method string

const (
	MethodDeal        Method = "trato"
	MethodWorkday     Method = "dia-laboral"
	MethodGreater     Method = "mayor-trato-dia"
	MethodDealPlusDay Method = "trato-mas-dia"
	MethodHourly      Method = "hora"
	MethodBonusOnly   Method = "bono"
)

// Methods lists every supported payment method.
var Methods = []Method{
	MethodDeal, MethodWorkday, MethodGreater, MethodDealPlusDay, MethodHourly, MethodBonusOnly,
}

// Field names of a worker row.
const (
	FieldWorker          = "worker"
	FieldYield           = "yield"
	FieldYieldValue      = "yieldValue"
	FieldSalary          = "salary"
	FieldWorkingDay      = "workingDay"
	FieldBonus           = "bonus"
	FieldHoursWorked     = "hoursWorked"
	FieldPaymentMethod   = "paymentMethod"
	FieldTotalDeal       = "totalDeal"
	FieldDayValue        = "dayValue"
	FieldDailyTotal      = "dailyTotal"
	FieldTotalHoursYield = "totalHoursYield"
	FieldValue           = "value"
)

// Inputs are the primitive inputs of a worker row. Missing or malformed
// fields read as zero.
type Inputs struct {
	Yield           float64
	YieldValue      float64
	Salary          float64
	WorkingDay      float64
	Bonus           float64
	HoursWorked     float64
	TotalHoursYield float64
	Method          Method
}

// FromValues reads Inputs from a row's field state.
func FromValues(v rules.Values) Inputs {
	return Inputs{
		Yield:           v.Float(FieldYield),
		YieldValue:      v.Float(FieldYieldValue),
		Salary:          v.Float(FieldSalary),
		WorkingDay:      v.Float(FieldWorkingDay),
		Bonus:           v.Float(FieldBonus),
		HoursWorked:     v.Float(FieldHoursWorked),
		TotalHoursYield: v.Float(FieldTotalHoursYield),
		Method:          Method(v.Text(FieldPaymentMethod)),
	}
}

// TotalDeal is piecework pay: yield × yieldValue.
func (in Inputs) TotalDeal() float64 { return in.Yield * in.YieldValue }

// DayValue is the monthly salary spread over DaysPerMonth.
func (in Inputs) DayValue() float64 { return in.Salary / DaysPerMonth }

// DailyTotal is DayValue × workingDay.
func (in Inputs) DailyTotal() float64 { return in.DayValue() * in.WorkingDay }

// TotalHours is workingDay × HoursPerWorkday.
func (in Inputs) TotalHours() float64 { return in.WorkingDay * HoursPerWorkday }

// Hours returns hoursWorked, or totalHoursYield when no hours were entered.
func (in Inputs) Hours() float64 {
	if in.HoursWorked != 0 {
		return in.HoursWorked
	}
	return in.TotalHoursYield
}

// TotalPayable is the row's pay under its payment method. An unknown or
// empty method pays zero.
func (in Inputs) TotalPayable() float64 {
	deal := in.TotalDeal()
	daily := in.DailyTotal()
	switch in.Method {
	case MethodDeal:
		return deal + in.Bonus
	case MethodWorkday:
		return daily + in.Bonus
	case MethodGreater:
		return max(deal+in.Bonus, daily+in.Bonus)
	case MethodDealPlusDay:
		return deal + daily + in.Bonus
	case MethodHourly:
		return in.DayValue()/HoursPerWorkday*in.Hours() + in.Bonus
	case MethodBonusOnly:
		return in.Bonus
	default:
		return 0
	}
}
