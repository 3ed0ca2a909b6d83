package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldrules/internal/rules"
)

func newEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()
	env, err := NewEnv(opts...)
	require.NoError(t, err)
	return env
}

func compile(t *testing.T, env *Env, src string) *Program {
	t.Helper()
	p, err := env.Compile(src)
	require.NoError(t, err)
	return p
}

func TestEval_NumbersAreDoubles(t *testing.T) {
	env := newEnv(t)
	p := compile(t, env, "form.yield * form.yieldValue")

	got, err := p.Eval(Vars{Form: rules.Values{"yield": 10, "yieldValue": 5.0}})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got)
}

func TestEval_IntResultsComeBackAsFloat(t *testing.T) {
	env := newEnv(t)
	got, err := compile(t, env, "size(form)").Eval(Vars{Form: rules.Values{"a": 1, "b": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestNum_MissingAndMalformedAreZero(t *testing.T) {
	env := newEnv(t)
	p := compile(t, env, `num(form, "salary") / 30.0 + num(form, "missing") + num(form, "garbage")`)

	got, err := p.Eval(Vars{Form: rules.Values{"salary": 300000, "garbage": "abc"}})
	require.NoError(t, err)
	assert.InDelta(t, 10000, got, 1e-9)
}

func TestStr(t *testing.T) {
	env := newEnv(t)
	got, err := compile(t, env, `str(form, "method") + "/" + str(form, "none")`).Eval(Vars{Form: rules.Values{"method": "trato"}})
	require.NoError(t, err)
	assert.Equal(t, "trato/", got)
}

func TestToday_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	env := newEnv(t, WithNow(func() time.Time { return fixed }))

	got, err := compile(t, env, "today()").Eval(Vars{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", got)
}

func TestLookup(t *testing.T) {
	env := newEnv(t)
	p := compile(t, env, `str(lookup(external.workerList, "_id", form.worker), "classification")`)
	ext := rules.External{"workerList": []rules.Entity{
		{"_id": "w1", "classification": "temporero"},
		{"_id": "w2", "classification": "planta"},
	}}

	got, err := p.Eval(Vars{Form: rules.Values{"worker": "w2"}, External: ext})
	require.NoError(t, err)
	assert.Equal(t, "planta", got)

	got, err = p.Eval(Vars{Form: rules.Values{"worker": "w9"}, External: ext})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestPayrollFunctions(t *testing.T) {
	env := newEnv(t, WithPayroll())
	p := compile(t, env, "totalPayable(form)")

	row := rules.Values{
		"yield": 10, "yieldValue": 5, "salary": 300000,
		"workingDay": 1, "bonus": 2000, "paymentMethod": "mayor-trato-dia",
	}
	got, err := p.Eval(Vars{Form: row})
	require.NoError(t, err)
	assert.InDelta(t, 12000, got, 1e-9)

	_, err = newEnv(t).Compile("totalPayable(form)")
	assert.Error(t, err, "payroll functions are opt-in")
}

func TestExtensions(t *testing.T) {
	env := newEnv(t)
	got, err := compile(t, env, `math.greatest(num(form, "a"), num(form, "b"))`).Eval(Vars{Form: rules.Values{"a": 3, "b": 7}})
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	got, err = compile(t, env, `str(form, "name").upperAscii()`).Eval(Vars{Form: rules.Values{"name": "poda"}})
	require.NoError(t, err)
	assert.Equal(t, "PODA", got)
}

func TestCompile_Errors(t *testing.T) {
	env := newEnv(t)
	_, err := env.Compile("form.yield *")
	assert.Error(t, err)

	_, err = env.Compile("undefined_var + 1.0")
	assert.Error(t, err)
}

func TestEval_MissingKeyIsError(t *testing.T) {
	env := newEnv(t)
	_, err := compile(t, env, "form.nothing").Eval(Vars{Form: rules.Values{}})
	assert.Error(t, err)
}

func TestAdapters(t *testing.T) {
	env := newEnv(t)

	calc := compile(t, env, "form.salary / 30.0").Calculate()
	got, err := calc(rules.Values{"salary": 300000})
	require.NoError(t, err)
	assert.InDelta(t, 10000, got, 1e-9)

	preset := compile(t, env, `num(parent, "taskPrice")`).Preset()
	got, err = preset(rules.Values{}, rules.Values{"taskPrice": 1500}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got)
}

func TestFilter(t *testing.T) {
	env := newEnv(t)
	filter := compile(t, env, `str(item, "taskTypeId") == str(form, "taskType")`).Filter("tasks")
	ext := rules.External{"tasks": []rules.Entity{
		{"_id": "a", "taskTypeId": "T1"},
		{"_id": "b", "taskTypeId": "T2"},
		{"_id": "c", "taskTypeId": "T1"},
	}}

	got, err := filter(ext, rules.Values{"taskType": "T1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["_id"])
	assert.Equal(t, "c", got[1]["_id"])

	got, err = filter(ext, rules.Values{"taskType": "nope"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilter_NonBoolIsError(t *testing.T) {
	env := newEnv(t)
	filter := compile(t, env, `str(item, "_id")`).Filter("tasks")
	_, err := filter(rules.External{"tasks": []rules.Entity{{"_id": "a"}}}, nil)
	assert.ErrorContains(t, err, "not a bool")
}

func TestToCEL(t *testing.T) {
	in := rules.Values{
		"n":    int32(4),
		"list": []rules.Entity{{"x": uint8(1)}},
		"ptr":  (*int)(nil),
	}
	got := toCEL(map[string]any(in))
	assert.Equal(t, map[string]any{
		"n":    4.0,
		"list": []any{map[string]any{"x": 1.0}},
		"ptr":  nil,
	}, got)
}
