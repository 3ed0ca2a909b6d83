package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fieldrules/internal/refdata"
)

// Scenario defines a rule scenario: a rule set, its reference data, and a
// sequence of field changes with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is a directory of .cue rule files. Relative paths are resolved
	// against the scenario file location.
	Rules string `yaml:"rules,omitempty"`

	// RuleSet names the rule set within Rules.
	RuleSet string `yaml:"ruleset,omitempty"`

	// Builtin names a rule set shipped with the module instead of Rules.
	Builtin string `yaml:"builtin,omitempty"`

	// RefData is an optional YAML snapshot file providing parent and
	// external data.
	RefData string `yaml:"refdata,omitempty"`

	// SQLite is an optional read-only database providing parent and
	// external data.
	SQLite *SQLiteSource `yaml:"sqlite,omitempty"`

	// Parent and External are layered over RefData and SQLite.
	Parent   map[string]any `yaml:"parent,omitempty"`
	External map[string]any `yaml:"external,omitempty"`

	// Initial is the host field state before the first step.
	Initial map[string]any `yaml:"initial,omitempty"`

	// Init runs initialization rules over Initial before the steps.
	Init bool `yaml:"init,omitempty"`

	// Settle bounds cascading rounds for observe steps.
	Settle int `yaml:"settle,omitempty"`

	// ContinueOnError selects the continue-pass error policy.
	ContinueOnError bool `yaml:"continue_on_error,omitempty"`

	// Today fixes the date returned by today() in expressions.
	// Defaults to DefaultToday.
	Today string `yaml:"today,omitempty"`

	// Session is the engine session id. Defaults to "scenario/<name>".
	Session string `yaml:"session,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the directory the scenario was loaded from.
	dir string
}

// SQLiteSource selects reference data from a SQLite database.
type SQLiteSource struct {
	Path   string             `yaml:"path"`
	Tables []refdata.Table    `yaml:"tables,omitempty"`
	Parent *refdata.ParentRow `yaml:"parent,omitempty"`
}

// Step is one host interaction.
type Step struct {
	// Field and Value commit a single change and run its rules.
	Field string `yaml:"field,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Set applies host edits without running rules; Observe then diffs the
	// whole state against the snapshot and dispatches every change.
	Set     map[string]any `yaml:"set,omitempty"`
	Observe bool           `yaml:"observe,omitempty"`

	// Expect is checked right after the step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect holds per-step expectations. All given parts must hold.
type Expect struct {
	// Values is a subset match against the host field state.
	Values map[string]any `yaml:"values,omitempty"`

	// Writes is the exact ordered list of fields written by the step.
	Writes []string `yaml:"writes,omitempty"`

	// Applied is the number of rules applied by the step.
	Applied *int `yaml:"applied,omitempty"`

	// Skipped expects the step's pass to be skipped as unchanged.
	Skipped bool `yaml:"skipped,omitempty"`

	// Error is the expected error code (RULE_FAILED, PASS_LIMIT, ...).
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final trace and state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rule_applied": rule ran, with Value if given
	// - "rule_order": Rules ran in this relative order
	// - "rule_count": rule ran exactly Count times
	// - "final_values": final state contains Values
	// - "options": last options for Field have OptionValues
	Type string `yaml:"type"`

	Rule   string         `yaml:"rule,omitempty"`
	Value  any            `yaml:"value,omitempty"`
	Rules  []string       `yaml:"rules,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`

	Field        string `yaml:"field,omitempty"`
	OptionValues []any  `yaml:"option_values,omitempty"`
}

// Assertion type constants.
const (
	AssertRuleApplied = "rule_applied"
	AssertRuleOrder   = "rule_order"
	AssertRuleCount   = "rule_count"
	AssertFinalValues = "final_values"
	AssertOptions     = "options"
)

// Built-in rule set names.
const (
	BuiltinWorkerRow = "payroll/worker-row"
	BuiltinOrderForm = "payroll/order-form"
)

// DefaultToday is the date today() returns unless a scenario sets Today.
const DefaultToday = "2024-01-01"

// LoadScenario reads and parses a scenario YAML file. Relative paths in the
// scenario are resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses a scenario document. Relative paths resolve against
// the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// resolve joins a relative path with the scenario directory.
func (s *Scenario) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch {
	case s.Builtin != "" && s.Rules != "":
		return fmt.Errorf("builtin and rules are mutually exclusive")
	case s.Builtin != "":
		if s.Builtin != BuiltinWorkerRow && s.Builtin != BuiltinOrderForm {
			return fmt.Errorf("unknown builtin rule set %q", s.Builtin)
		}
	case s.Rules == "":
		return fmt.Errorf("rules or builtin is required")
	case s.RuleSet == "":
		return fmt.Errorf("ruleset is required with rules")
	}

	if s.Settle < 0 {
		return fmt.Errorf("settle must be non-negative")
	}
	if s.SQLite != nil && s.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required")
	}
	if len(s.Steps) == 0 && !s.Init {
		return fmt.Errorf("at least one step is required")
	}

	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	single := step.Field != ""
	batch := step.Observe || len(step.Set) > 0
	switch {
	case single && batch:
		return fmt.Errorf("steps[%d]: field and set/observe are mutually exclusive", index)
	case !single && !batch:
		return fmt.Errorf("steps[%d]: field or set/observe is required", index)
	case len(step.Set) > 0 && !step.Observe:
		return fmt.Errorf("steps[%d]: set requires observe: true", index)
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRuleApplied:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_applied", index)
		}
	case AssertRuleOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for rule_order", index)
		}
	case AssertRuleCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_count", index)
		}
	case AssertFinalValues:
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values is required for final_values", index)
		}
	case AssertOptions:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for options", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
