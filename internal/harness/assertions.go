package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/fieldrules/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nRules applied:\n")
		i := 0
		for _, event := range e.Trace {
			for _, a := range event.Applied {
				i++
				fmt.Fprintf(&buf, "  [%d] step %d seq %d: %s -> %s = %v\n",
					i, event.Step, event.Seq, a.RuleID, a.Target, a.Value)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertRuleApplied:
		return assertRuleApplied(result.Trace, a)
	case AssertRuleOrder:
		return assertRuleOrder(result.Trace, a)
	case AssertRuleCount:
		return assertRuleCount(result.Trace, a)
	case AssertFinalValues:
		return assertFinalValues(result, a)
	case AssertOptions:
		return assertOptions(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertRuleApplied checks that the rule ran at least once, with a.Value as
// its result when given.
func assertRuleApplied(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		for _, ap := range event.Applied {
			if ap.RuleID != a.Rule {
				continue
			}
			if a.Value == nil || value.Equal(ap.Value, a.Value) {
				return nil
			}
		}
	}

	expected := fmt.Sprintf("rule %s applied", a.Rule)
	if a.Value != nil {
		expected += fmt.Sprintf(" with value %v", a.Value)
	}
	return &AssertionError{
		Type:     AssertRuleApplied,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertRuleOrder checks that rules first ran in the given order.
// Intervening rules are allowed.
func assertRuleOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	pos := 0
	for _, event := range trace {
		for _, ap := range event.Applied {
			pos++
			if _, seen := positions[ap.RuleID]; !seen {
				positions[ap.RuleID] = pos
			}
		}
	}

	for _, id := range a.Rules {
		if positions[id] == 0 {
			return &AssertionError{
				Type:     AssertRuleOrder,
				Expected: fmt.Sprintf("all rules applied: %v", a.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", id),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Rules); i++ {
		prev, curr := a.Rules[i-1], a.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertRuleOrder,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertRuleCount checks that the rule ran exactly a.Count times.
func assertRuleCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		for _, ap := range event.Applied {
			if ap.RuleID == a.Rule {
				count++
			}
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertRuleCount,
			Expected: fmt.Sprintf("%d applications of %s", a.Count, a.Rule),
			Actual:   fmt.Sprintf("%d applications", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalValues checks the final field state with subset semantics.
func assertFinalValues(result *Result, a Assertion) error {
	diffs := diffValues(a.Values, result.Values)
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalValues,
		Expected: formatValues(a.Values),
		Actual:   strings.Join(diffs, "; "),
	}
}

// assertOptions compares the values of the last option list delivered for
// a.Field. An empty OptionValues expects an empty list.
func assertOptions(result *Result, a Assertion) error {
	opts, ok := result.Options[a.Field]
	if !ok {
		return &AssertionError{
			Type:     AssertOptions,
			Expected: fmt.Sprintf("options delivered for %s", a.Field),
			Actual:   "no options delivered",
			Trace:    result.Trace,
		}
	}

	got := make([]any, len(opts))
	for i, o := range opts {
		got[i] = o.Value
	}
	match := len(got) == len(a.OptionValues)
	for i := 0; match && i < len(got); i++ {
		match = value.Equal(got[i], a.OptionValues[i])
	}
	if !match {
		return &AssertionError{
			Type:     AssertOptions,
			Expected: fmt.Sprintf("%s options %v", a.Field, a.OptionValues),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// formatValues renders a map with sorted keys for stable messages.
func formatValues(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
