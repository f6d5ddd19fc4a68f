package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

// TraceSnapshot captures the structure and initialization trace of a run.
// Values and error messages are left out; the fingerprint is checked by
// the run itself.
type TraceSnapshot struct {
	ScenarioName string
	Build        *selector.BuildRecord
	Trace        []selector.InitEvent
	Failure      *Failure
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"scenario_name": s.ScenarioName,
	}

	if s.Build != nil {
		branches := make([]any, len(s.Build.Branches))
		for i, b := range s.Build.Branches {
			edges := make([]any, len(b.Edges))
			for j, e := range b.Edges {
				edges[j] = map[string]any{
					"name":       e.Name,
					"direction":  e.ID.Direction.String(),
					"port":       e.ID.Port,
					"source":     e.Source,
					"dest":       e.Dest,
					"equalities": e.Equalities,
				}
			}
			branches[i] = map[string]any{
				"index": b.Index,
				"unit":  b.Unit,
				"edges": edges,
			}
		}
		connectors := s.Build.Connectors
		if connectors == nil {
			connectors = []string{}
		}
		out["build"] = map[string]any{
			"build_id":   s.Build.BuildID,
			"seq":        s.Build.Seq,
			"selector":   s.Build.Selector,
			"connectors": connectors,
			"branches":   branches,
		}
	}

	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"run_id": ev.RunID,
			"seq":    ev.Seq,
			"branch": ev.Branch,
			"unit":   ev.Unit,
			"step":   string(ev.Step),
		}
		if ev.Edge != "" {
			m["edge"] = ev.Edge
		}
		if ev.Copied != 0 {
			m["copied"] = ev.Copied
		}
		if ev.Error != "" {
			m["failed"] = true
		}
		trace[i] = m
	}
	out["trace"] = trace

	if s.Failure != nil {
		f := map[string]any{"stage": s.Failure.Stage}
		if s.Failure.Code != "" {
			f["code"] = s.Failure.Code
		}
		if s.Failure.Kind != "" {
			f["kind"] = s.Failure.Kind
		}
		out["failure"] = f
	}
	return out
}

// SnapshotJSON renders the golden form of a result: canonical JSON of its
// build, trace and failure.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Build:        result.Build,
		Trace:        result.Trace,
		Failure:      result.Failure,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further checks.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
