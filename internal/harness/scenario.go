package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/unitsel/internal/model"
)

// Scenario is a declarative selector test: a flowsheet, optional guesses and
// init options, the expected outcome and assertions over the recorded trace.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description documents what the scenario exercises.
	Description string `yaml:"description"`

	// Spec is a CUE file holding the flowsheet. Exactly one of Spec and
	// Source is set.
	Spec string `yaml:"spec,omitempty"`

	// Source is inline CUE holding the flowsheet.
	Source string `yaml:"source,omitempty"`

	// Flowsheet selects flowsheet.<name> from the CUE value.
	Flowsheet string `yaml:"flowsheet"`

	// Guesses seed port states after Build.
	Guesses model.Guesses `yaml:"guesses,omitempty"`

	// Options are passed to Initialize unchanged.
	Options map[string]any `yaml:"options,omitempty"`

	// IDs are handed out in order as build and run IDs.
	// Defaults to DefaultIDs.
	IDs []string `yaml:"ids,omitempty"`

	// Skip stops the run after the named stage ("init" builds only).
	Skip string `yaml:"skip,omitempty"`

	// Expect describes an expected failure. Nil means the scenario must
	// succeed end to end.
	Expect *Expect `yaml:"expect,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// DefaultIDs are the build and run IDs used when a scenario names none.
var DefaultIDs = []string{"build-0001", "run-0001"}

// Expect is an expected failure.
type Expect struct {
	// Stage is where the failure happens: validate, build, guess or init.
	Stage string `yaml:"stage"`

	// Code is the error code, e.g. "E330".
	Code string `yaml:"code,omitempty"`

	// Kind is the selector error kind, e.g. "InitializationError".
	Kind string `yaml:"kind,omitempty"`
}

// Stages of a scenario run.
const (
	StageValidate = "validate"
	StageBuild    = "build"
	StageGuess    = "guess"
	StageInit     = "init"
)

// Assertion is one check evaluated against a Result.
type Assertion struct {
	Type string `yaml:"type"`

	// Units is the expected initialization order (init_order).
	Units []string `yaml:"units,omitempty"`

	// Names are the expected connector names (connectors).
	Names []string `yaml:"names,omitempty"`

	// Step, Unit and Edge filter trace events (trace_contains, trace_count).
	Step string `yaml:"step,omitempty"`
	Unit string `yaml:"unit,omitempty"`
	Edge string `yaml:"edge,omitempty"`

	// Count is the expected count (edge_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Point is "unit.point" or a connector name (point_value).
	Point string `yaml:"point,omitempty"`

	// Var and Value are the expected variable value (point_value).
	Var   string  `yaml:"var,omitempty"`
	Value float64 `yaml:"value,omitempty"`
}

// Assertion types.
const (
	AssertInitOrder     = "init_order"
	AssertConnectors    = "connectors"
	AssertEdgeCount     = "edge_count"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertPointValue    = "point_value"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative spec path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) && basePath != "" {
		scenario.Spec = filepath.Join(basePath, scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Flowsheet == "" {
		return fmt.Errorf("flowsheet is required")
	}

	switch {
	case s.Spec == "" && s.Source == "":
		return fmt.Errorf("one of spec or source is required")
	case s.Spec != "" && s.Source != "":
		return fmt.Errorf("spec and source are mutually exclusive")
	case s.Spec != "":
		if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", s.Spec)
		}
	}

	if s.Skip != "" && s.Skip != StageInit {
		return fmt.Errorf("skip: unknown stage %q", s.Skip)
	}

	if s.Expect != nil {
		switch s.Expect.Stage {
		case StageValidate, StageBuild, StageGuess, StageInit:
		case "":
			return fmt.Errorf("expect: stage is required")
		default:
			return fmt.Errorf("expect: unknown stage %q", s.Expect.Stage)
		}
		if s.Expect.Code == "" && s.Expect.Kind == "" {
			return fmt.Errorf("expect: code or kind is required")
		}
	}

	if len(s.Assertions) == 0 && s.Expect == nil {
		return fmt.Errorf("assertions list is required unless expect is set")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertInitOrder:
		if len(a.Units) == 0 {
			return fmt.Errorf("assertions[%d]: units list is required for init_order", index)
		}
	case AssertConnectors:
		// An empty list asserts that no connectors are exposed.
	case AssertEdgeCount, AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		if a.Type == AssertTraceCount && a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_count", index)
		}
	case AssertTraceContains:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for trace_contains", index)
		}
	case AssertPointValue:
		if a.Point == "" || a.Var == "" {
			return fmt.Errorf("assertions[%d]: point and var are required for point_value", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
