package expr

import (
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/roach88/fieldrules/internal/payroll"
	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/value"
)

func helperFunctions(now func() time.Time) []cel.EnvOption {
	mapType := cel.MapType(cel.StringType, cel.DynType)
	return []cel.EnvOption{
		cel.Function("num",
			cel.Overload("num_map_string", []*cel.Type{mapType, cel.StringType}, cel.DoubleType,
				cel.BinaryBinding(func(m, key ref.Val) ref.Val {
					v, ok := find(m, key)
					if !ok {
						return types.Double(0)
					}
					return types.Double(value.Float(v))
				}))),
		cel.Function("str",
			cel.Overload("str_map_string", []*cel.Type{mapType, cel.StringType}, cel.StringType,
				cel.BinaryBinding(func(m, key ref.Val) ref.Val {
					v, ok := find(m, key)
					if !ok {
						return types.String("")
					}
					return types.String(value.Text(v))
				}))),
		cel.Function("lookup",
			cel.Overload("lookup_list_string_dyn", []*cel.Type{cel.ListType(cel.DynType), cel.StringType, cel.DynType}, mapType,
				cel.FunctionBinding(lookup))),
		cel.Function("today",
			cel.Overload("today", nil, cel.StringType,
				cel.FunctionBinding(func(...ref.Val) ref.Val {
					return types.String(now().Format(time.DateOnly))
				}))),
	}
}

// find returns the native value of m[key].
func find(m, key ref.Val) (any, bool) {
	mapper, ok := m.(traits.Mapper)
	if !ok {
		return nil, false
	}
	v, found := mapper.Find(key)
	if !found || types.IsError(v) {
		return nil, false
	}
	out, err := fromCEL(v)
	if err != nil {
		return nil, false
	}
	return out, true
}

func lookup(args ...ref.Val) ref.Val {
	list, ok := args[0].(traits.Lister)
	if !ok {
		return types.NewErr("lookup: first argument is not a list")
	}
	want, err := fromCEL(args[2])
	if err != nil {
		return types.WrapErr(err)
	}
	empty := types.DefaultTypeAdapter.NativeToValue(map[string]any{})
	if value.IsEmpty(want) {
		return empty
	}
	it := list.Iterator()
	for it.HasNext() == types.True {
		item := it.Next()
		got, ok := find(item, args[1])
		if ok && value.Equal(got, want) {
			return item
		}
	}
	return empty
}

func payrollFunctions() []cel.EnvOption {
	mapType := cel.MapType(cel.StringType, cel.DynType)
	fn := func(name string, f func(payroll.Inputs) float64) cel.EnvOption {
		return cel.Function(name,
			cel.Overload(name+"_map", []*cel.Type{mapType}, cel.DoubleType,
				cel.UnaryBinding(func(m ref.Val) ref.Val {
					native, err := fromCEL(m)
					if err != nil {
						return types.WrapErr(err)
					}
					row, _ := native.(map[string]any)
					return types.Double(f(payroll.FromValues(rules.Values(row))))
				})))
	}
	return []cel.EnvOption{
		fn("totalDeal", payroll.Inputs.TotalDeal),
		fn("dayValue", payroll.Inputs.DayValue),
		fn("dailyTotal", payroll.Inputs.DailyTotal),
		fn("totalHours", payroll.Inputs.TotalHours),
		fn("totalPayable", payroll.Inputs.TotalPayable),
	}
}
