package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldrules/internal/expr"
	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/value"
)

func testEnv(t *testing.T) *expr.Env {
	t.Helper()
	env, err := expr.NewEnv(expr.WithPayroll())
	require.NoError(t, err)
	return env
}

func compileOne(t *testing.T, src, name string) (*Definition, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset."+name)), testEnv(t))
}

const workerRowCUE = `
ruleset: workerRow: {
	description: "worker grid"
	rules: [
		{id: "worker-yieldValue", trigger: "worker", action: {
			type: "preset", targetField: "yieldValue", source: "parent", sourceField: "taskPrice"
		}},
		{trigger: {field: "yield"}, action: {
			type: "calculate", targetField: "totalDeal", expr: "num(form, \"yield\") * num(form, \"yieldValue\")"
		}},
		{trigger: "bonus", action: {
			type: "calculate", targetField: "value", expr: "totalPayable(form)"
		}},
		{trigger: "taskType", action: {
			type: "filterOptions", targetField: "task", list: "tasks",
			key: "taskTypeId", formField: "taskType", label: ["taskName"]
		}},
		{trigger: "crop", action: {
			type: "filterOptions", targetField: "variety", list: "varieties",
			match: "str(item, \"cropId\") == str(form, \"crop\")"
		}},
		{trigger: "date", action: {type: "preset", targetField: "season", value: "2024"}},
	]
}
`

// =============================================================================
// CompileRuleSet
// =============================================================================

func TestCompileRuleSet_Basic(t *testing.T) {
	def, err := compileOne(t, workerRowCUE, "workerRow")
	require.NoError(t, err)

	assert.Equal(t, "workerRow", def.Name)
	assert.Equal(t, "worker grid", def.Description)
	require.Len(t, def.Rules, 6)

	assert.Equal(t, "worker-yieldValue", def.Rules[0].ID)
	assert.Equal(t, "yield->totalDeal#1", def.Rules[1].ID)
	assert.Equal(t, "yield", def.Rules[1].Trigger.Field)

	preset, ok := def.Rules[0].Action.(rules.Preset)
	require.True(t, ok)
	assert.Equal(t, rules.SourceParent, preset.Source)
	assert.Equal(t, "taskPrice", preset.SourceField)

	assert.IsType(t, rules.Calculate{}, def.Rules[1].Action)
	assert.IsType(t, rules.FilterOptions{}, def.Rules[3].Action)
	assert.True(t, def.RulePos(0).IsValid())
	assert.Empty(t, def.Cycles())
}

func TestCompileRuleSet_CompiledFunctionsRun(t *testing.T) {
	def, err := compileOne(t, workerRowCUE, "workerRow")
	require.NoError(t, err)

	calc := def.Rules[1].Action.(rules.Calculate)
	got, err := calc.Fn(rules.Values{"yield": 10, "yieldValue": 5})
	require.NoError(t, err)
	assert.InDelta(t, 50, value.Float(got), 1e-9)

	pay := def.Rules[2].Action.(rules.Calculate)
	got, err = pay.Fn(rules.Values{"yield": 10, "yieldValue": 5, "bonus": 2000, "paymentMethod": "trato"})
	require.NoError(t, err)
	assert.InDelta(t, 2050, value.Float(got), 1e-9)

	ext := rules.External{
		"tasks": []rules.Entity{
			{"_id": "t1", "taskName": "Poda", "taskTypeId": "T1"},
			{"_id": "t2", "taskName": "Riego", "taskTypeId": "T2"},
		},
		"varieties": []rules.Entity{
			{"_id": "v1", "varietyName": "Hass", "cropId": "palta"},
			{"_id": "v2", "varietyName": "Fuerte", "cropId": "palta"},
			{"_id": "v3", "varietyName": "Lapins", "cropId": "cereza"},
		},
	}
	tasks := def.Rules[3].Action.(rules.FilterOptions)
	got2, err := tasks.Filter(ext, rules.Values{"taskType": "T1"})
	require.NoError(t, err)
	assert.Equal(t, []rules.Option{{Value: "t1", Label: "Poda"}}, rules.MapOptions(got2, tasks.MapperOrDefault()))

	varieties := def.Rules[4].Action.(rules.FilterOptions)
	got2, err = varieties.Filter(ext, rules.Values{"crop": "palta"})
	require.NoError(t, err)
	assert.Len(t, got2, 2)
	assert.Nil(t, varieties.Mapper, "no value/label keys means the default mapper")

	season := def.Rules[5].Action.(rules.Preset)
	got, err = season.Fn(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024", got)
}

func TestCompileRuleSet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		code  string
		field string
	}{
		{"missing trigger", `{action: {type: "calculate", targetField: "x", expr: "1.0"}}`, ErrCodeTrigger, "rules[0].trigger"},
		{"missing action", `{trigger: "a"}`, ErrCodeAction, "rules[0].action"},
		{"missing target", `{trigger: "a", action: {type: "calculate", expr: "1.0"}}`, ErrCodeAction, "rules[0].action.targetField"},
		{"unknown type", `{trigger: "a", action: {type: "explode", targetField: "x"}}`, ErrCodeActionType, "rules[0].action.type"},
		{"bad expr", `{trigger: "a", action: {type: "calculate", targetField: "x", expr: "form.a +"}}`, ErrCodeExpression, "rules[0].action.expr"},
		{"parent without field", `{trigger: "a", action: {type: "preset", targetField: "x", source: "parent"}}`, ErrCodeAction, "rules[0].action.sourceField"},
		{"bad source", `{trigger: "a", action: {type: "preset", targetField: "x", source: "sibling"}}`, ErrCodeAction, "rules[0].action.source"},
		{"preset without input", `{trigger: "a", action: {type: "preset", targetField: "x"}}`, ErrCodeAction, "rules[0].action"},
		{"filter without key", `{trigger: "a", action: {type: "filterOptions", targetField: "x", list: "l"}}`, ErrCodeAction, "rules[0].action.key"},
		{"self loop", `{trigger: "a", action: {type: "calculate", targetField: "a", expr: "1.0"}}`, ErrCodeRuleConfig, "rules[0].action.targetField"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, `ruleset: bad: rules: [`+tt.rule+`]`, "bad")
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileRuleSet_MissingRules(t *testing.T) {
	_, err := compileOne(t, `ruleset: empty: description: "nothing"`, "empty")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeRuleSet, ce.Code)
}

func TestCompileRuleSet_DuplicateIDHasPosition(t *testing.T) {
	_, err := compileOne(t, `ruleset: dup: rules: [
		{id: "x", trigger: "a", action: {type: "calculate", targetField: "b", expr: "1.0"}},
		{id: "x", trigger: "c", action: {type: "calculate", targetField: "d", expr: "2.0"}},
	]`, "dup")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeRuleConfig, ce.Code)
	assert.Equal(t, "rules[1].id", ce.Field)
	assert.Equal(t, 3, ce.Line())
}

// =============================================================================
// Loading
// =============================================================================

func TestCompileString_CollectAll(t *testing.T) {
	src := workerRowCUE + `
ruleset: broken: rules: [{trigger: "a"}]
ruleset: orderForm: rules: [
	{trigger: "task", action: {type: "preset", targetField: "taskPrice", expr: "num(lookup(external.tasks, \"_id\", form.task), \"price\")"}},
]
`
	res, errs := CompileString(src, testEnv(t), LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ruleset.broken.rules[0].action")
	require.Len(t, res.RuleSets, 2)

	def, err := res.Lookup("orderForm")
	require.NoError(t, err)
	assert.Len(t, def.Rules, 1)

	_, err = res.Lookup("nope")
	assert.ErrorContains(t, err, `rule set "nope" not found`)
}

func TestCompileString_FailFast(t *testing.T) {
	src := `
ruleset: broken: rules: [{trigger: "a"}]
ruleset: fine: rules: []
`
	res, errs := CompileString(src, testEnv(t), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Empty(t, res.RuleSets)
}

func TestCompileString_NoRuleSets(t *testing.T) {
	_, errs := CompileString(`other: 1`, testEnv(t), LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no rule sets found")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "worker.cue"), []byte("package rules\n"+workerRowCUE), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "order.cue"), []byte(`package rules

ruleset: orderForm: rules: [
	{trigger: "taskType", action: {type: "filterOptions", targetField: "task", list: "tasks", key: "taskTypeId", formField: "taskType"}},
]
`), 0644))

	res, errs := LoadDir(dir, testEnv(t), LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)
	assert.Len(t, res.RuleSets, 2)

	def, err := res.Lookup("workerRow")
	require.NoError(t, err)
	rs, err := def.Build(rules.Values{"taskPrice": 1500}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bonus", "crop", "date", "taskType", "worker", "yield"}, rs.WatchedFields())
}

func TestLoadDir_Errors(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), testEnv(t), LoadModeFailFast)
	require.Len(t, errs, 1)
	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)

	_, errs = LoadDir(t.TempDir(), testEnv(t), LoadModeFailFast)
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}
