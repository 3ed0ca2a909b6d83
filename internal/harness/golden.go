package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fieldrules/internal/value"
)

// TraceSnapshot captures the trace and final state of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session"`
	Trace        []TraceEvent `json:"trace"`
	Values       map[string]any `json:"values"`
}

// toCanonicalMap converts the snapshot to plain maps for canonical JSON.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step": event.Step,
			"seq":  event.Seq,
		}
		if event.Field != "" {
			eventMap["field"] = event.Field
		}
		if event.Init {
			eventMap["init"] = true
		}
		if event.Skipped {
			eventMap["skipped"] = true
		}
		if len(event.Applied) > 0 {
			applied := make([]any, len(event.Applied))
			for j, a := range event.Applied {
				applied[j] = map[string]any{
					"rule_id": a.RuleID,
					"kind":    string(a.Kind),
					"target":  a.Target,
					"value":   a.Value,
				}
			}
			eventMap["applied"] = applied
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session":       s.Session,
		"trace":         traceList,
		"values":        s.Values,
	}
}

// MarshalTrace renders a result as canonical JSON. Equal runs produce equal
// bytes.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Trace:        result.Trace,
		Values:       result.Values,
	}
	return value.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file {fixtureDir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, fixtureDir string, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, fixtureDir, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, fixtureDir, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
