package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/fieldrules/internal/compiler"
	"github.com/roach88/fieldrules/internal/engine"
	"github.com/roach88/fieldrules/internal/expr"
	"github.com/roach88/fieldrules/internal/payroll"
	"github.com/roach88/fieldrules/internal/refdata"
	"github.com/roach88/fieldrules/internal/rules"
	"github.com/roach88/fieldrules/internal/testutil"
	"github.com/roach88/fieldrules/internal/value"
)

// Harness runs scenarios against a real engine.
type Harness struct {
	logger  *slog.Logger
	verbose bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to each scenario's engine.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithVerbose enables per-rule engine logging.
func WithVerbose(v bool) Option {
	return func(h *Harness) { h.verbose = v }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load reference data and build the rule set
//  2. Create an engine with a fixed session and fresh clock
//  3. Run initialization rules if requested, then prime the snapshot with
//     the host state
//  4. Apply each step and check its expectations
//  5. Evaluate assertions over the full trace and final state
//
// Setup problems (missing files, compile errors) are returned as errors.
// Failed expectations mark the result as failed.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	snap, err := loadRefData(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	today := scenario.Today
	if today == "" {
		today = DefaultToday
	}
	now, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return nil, fmt.Errorf("invalid today %q: %w", today, err)
	}
	env, err := expr.NewEnv(expr.WithPayroll(), expr.WithNow(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}

	rs, err := buildRuleSet(scenario, env, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule set: %w", err)
	}

	session := scenario.Session
	if session == "" {
		session = "scenario/" + scenario.Name
	}
	policy := engine.AbortPass
	if scenario.ContinueOnError {
		policy = engine.ContinuePass
	}

	eng := engine.New(rs,
		engine.WithLogger(h.logger),
		engine.WithVerbose(h.verbose),
		engine.WithSessionID(session),
		engine.WithClock(engine.NewClock()),
		engine.WithSettle(scenario.Settle),
		engine.WithErrorPolicy(policy),
	)
	defer eng.Close()

	result := NewResult()
	result.Session = session

	for _, r := range rs.Rules() {
		if _, ok := r.Action.(rules.FilterOptions); !ok {
			continue
		}
		target := r.Target()
		if err := eng.RegisterOptionFilterCallback(target, func(opts []rules.Option) {
			result.Options[target] = opts
		}); err != nil {
			return nil, err
		}
	}

	sink := testutil.NewRecordingSink(rules.Values(scenario.Initial))

	if scenario.Init {
		pass, err := eng.ExecuteInitializationRules(sink.Values(), sink)
		if pass != nil {
			result.AddPass(0, pass, errors.Join(pass.Errors...))
		}
		if err != nil {
			result.AddError(fmt.Sprintf("init: %v", err))
		}
	}
	eng.Prime(sink.Values())

	for i, step := range scenario.Steps {
		n := i + 1
		before := len(sink.Writes())

		var passes []*engine.PassResult
		var stepErr error
		if step.Field != "" {
			sink.Set(step.Field, step.Value)
			pass, err := eng.ExecuteRules(step.Field, step.Value, sink.Values(), sink)
			if pass != nil {
				passes = append(passes, pass)
			}
			stepErr = err
		} else {
			for k, v := range step.Set {
				sink.Set(k, v)
			}
			obs, err := eng.Observe(sink.Values(), sink)
			if obs != nil {
				passes = obs.Passes
			}
			stepErr = err
		}

		for _, p := range passes {
			result.AddPass(n, p, errors.Join(p.Errors...))
		}
		if stepErr != nil && !engine.IsRuleError(stepErr) {
			result.Trace = append(result.Trace, TraceEvent{Step: n, Error: stepErr.Error()})
		}

		h.logger.Debug("scenario step completed",
			"scenario", scenario.Name,
			"step", n,
			"passes", len(passes),
			"error", stepErr,
		)

		for _, msg := range checkStep(n, step, passes, stepErr, sink, before) {
			result.AddError(msg)
		}
	}

	result.Values = sink.Values()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadRefData layers the scenario's YAML file, SQLite source and inline data.
func loadRefData(ctx context.Context, s *Scenario) (*refdata.Snapshot, error) {
	snap := &refdata.Snapshot{Parent: rules.Values{}, External: rules.External{}}

	if s.RefData != "" {
		file, err := refdata.LoadYAML(s.resolve(s.RefData))
		if err != nil {
			return nil, err
		}
		snap = snap.Merge(file)
	}

	if s.SQLite != nil {
		src, err := refdata.OpenSQLite(s.resolve(s.SQLite.Path))
		if err != nil {
			return nil, err
		}
		defer src.Close()

		ext, err := src.Load(ctx, s.SQLite.Tables)
		if err != nil {
			return nil, err
		}
		parent := rules.Values{}
		if s.SQLite.Parent != nil {
			parent, err = src.LoadParent(ctx, *s.SQLite.Parent)
			if err != nil {
				return nil, err
			}
		}
		snap = snap.Merge(&refdata.Snapshot{Parent: parent, External: ext})
	}

	return snap.Merge(&refdata.Snapshot{
		Parent:   rules.Values(s.Parent),
		External: rules.External(s.External),
	}), nil
}

func buildRuleSet(s *Scenario, env *expr.Env, snap *refdata.Snapshot) (*rules.RuleSet, error) {
	switch s.Builtin {
	case BuiltinWorkerRow:
		return payroll.WorkerRowRuleSet(snap.Parent, snap.External)
	case BuiltinOrderForm:
		return rules.NewRuleSet(payroll.OrderFormRules(), snap.Parent, snap.External)
	}

	loaded, errs := compiler.LoadDir(s.resolve(s.Rules), env, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	def, err := loaded.Lookup(s.RuleSet)
	if err != nil {
		return nil, err
	}
	return def.Build(snap.Parent, snap.External)
}

// checkStep evaluates a step's expectations and reports unexpected errors.
func checkStep(n int, step Step, passes []*engine.PassResult, stepErr error, sink *testutil.RecordingSink, before int) []string {
	var msgs []string
	fail := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf("step %d: ", n)+fmt.Sprintf(format, args...))
	}

	gotCode := errorCode(stepErr)
	if gotCode == "" {
		for _, p := range passes {
			if len(p.Errors) > 0 {
				gotCode = errorCode(p.Errors[0])
				break
			}
		}
	}

	exp := step.Expect
	if exp == nil {
		if gotCode != "" || stepErr != nil {
			fail("unexpected error: %v", firstError(stepErr, passes))
		}
		return msgs
	}

	if exp.Error != gotCode {
		if exp.Error == "" {
			fail("unexpected error: %v", firstError(stepErr, passes))
		} else {
			fail("expected error %s, got %q", exp.Error, gotCode)
		}
	}

	if len(exp.Values) > 0 {
		for _, diff := range diffValues(exp.Values, sink.Values()) {
			fail("%s", diff)
		}
	}

	if exp.Writes != nil {
		got := sink.Fields()[before:]
		if !slices.Equal(got, exp.Writes) {
			fail("expected writes %v, got %v", exp.Writes, got)
		}
	}

	if exp.Applied != nil {
		count := 0
		for _, p := range passes {
			count += len(p.Applied)
		}
		if count != *exp.Applied {
			fail("expected %d rules applied, got %d", *exp.Applied, count)
		}
	}

	if exp.Skipped {
		if len(passes) != 1 || !passes[0].Skipped {
			fail("expected the pass to be skipped")
		}
	}
	return msgs
}

func errorCode(err error) string {
	var rerr *engine.RuleError
	if errors.As(err, &rerr) {
		return string(rerr.Code)
	}
	var lerr *engine.PassLimitError
	if errors.As(err, &lerr) {
		return string(lerr.Code)
	}
	if err != nil {
		return "ERROR"
	}
	return ""
}

func firstError(stepErr error, passes []*engine.PassResult) error {
	if stepErr != nil {
		return stepErr
	}
	for _, p := range passes {
		if len(p.Errors) > 0 {
			return p.Errors[0]
		}
	}
	return nil
}

// diffValues reports every expected field whose actual value differs.
func diffValues(want map[string]any, got rules.Values) []string {
	var out []string
	for _, k := range sortedKeys(want) {
		actual, ok := got[k]
		if !ok {
			out = append(out, fmt.Sprintf("field %s: expected %v, not set", k, want[k]))
			continue
		}
		if !value.Equal(actual, want[k]) {
			out = append(out, fmt.Sprintf("field %s: expected %v, got %v", k, want[k], actual))
		}
	}
	return out
}
