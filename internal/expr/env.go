// Package expr compiles the CEL expressions used in rule files into rule
// functions.
//
// Expressions see four variables:
//
//	form      map(string, dyn)  current field state of the form or row
//	parent    map(string, dyn)  parent record snapshot
//	external  map(string, dyn)  reference collections and context values
//	item      map(string, dyn)  the entity under test (filter predicates only)
//
// All numbers are presented to expressions as doubles, so `form.yield *
// form.yieldValue` works whatever the host stored. Numeric literals must be
// written as doubles (30.0, not 30) when mixed with field values.
//
// Helper functions:
//
//	num(m, key)            m[key] as a double; missing or malformed → 0.0
//	str(m, key)            m[key] as a string; missing → ""
//	lookup(list, key, id)  first entity of list whose key equals id, or {}
//	today()                current date as "2006-01-02"
//
// WithPayroll adds totalDeal, dayValue, dailyTotal, totalHours and
// totalPayable over a worker row map.
package expr

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// DefaultCostLimit bounds the evaluation cost of one expression.
const DefaultCostLimit = 1_000_000

// Env is a compiled CEL environment. It is safe for concurrent use.
type Env struct {
	env       *cel.Env
	costLimit uint64
}

type config struct {
	now       func() time.Time
	payroll   bool
	costLimit uint64
}

// EnvOption configures NewEnv.
type EnvOption func(*config)

// WithNow sets the clock behind today(). Default: time.Now.
func WithNow(now func() time.Time) EnvOption {
	return func(c *config) { c.now = now }
}

// WithPayroll registers the worker-row payroll functions.
func WithPayroll() EnvOption {
	return func(c *config) { c.payroll = true }
}

// WithCostLimit overrides DefaultCostLimit.
func WithCostLimit(n uint64) EnvOption {
	return func(c *config) { c.costLimit = n }
}

// NewEnv builds the expression environment.
func NewEnv(opts ...EnvOption) (*Env, error) {
	cfg := config{now: time.Now, costLimit: DefaultCostLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	mapType := cel.MapType(cel.StringType, cel.DynType)
	envOpts := []cel.EnvOption{
		cel.Variable("form", mapType),
		cel.Variable("parent", mapType),
		cel.Variable("external", mapType),
		cel.Variable("item", mapType),
		ext.Math(),
		ext.Strings(),
	}
	envOpts = append(envOpts, helperFunctions(cfg.now)...)
	if cfg.payroll {
		envOpts = append(envOpts, payrollFunctions()...)
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Env{env: env, costLimit: cfg.costLimit}, nil
}
