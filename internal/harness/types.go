package harness

import "github.com/roach88/unitsel/internal/selector"

// Failure is the error a scenario run stopped on.
type Failure struct {
	Stage   string `json:"stage"`
	Code    string `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the outcome matched Expect and every assertion held.
	Pass bool `json:"pass"`

	// Build is the build record read back from the store. Nil if Build
	// failed.
	Build *selector.BuildRecord `json:"build,omitempty"`

	// Fingerprint is the selector's structural fingerprint after Build.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Trace holds the initialization events in seq order.
	Trace []selector.InitEvent `json:"trace"`

	// Failure is set when a stage returned an error.
	Failure *Failure `json:"failure,omitempty"`

	// Streams is the port stream table after the run.
	Streams []selector.StreamRow `json:"streams,omitempty"`

	// Points holds the final values of every unit point by "unit.point".
	Points map[string]map[string]float64 `json:"points,omitempty"`

	// Seeded is the number of guess values written.
	Seeded int `json:"seeded"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []selector.InitEvent{},
		Points: make(map[string]map[string]float64),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// InitOrder returns the units whose Initialize was called, in order.
func (r *Result) InitOrder() []string {
	var units []string
	for _, ev := range r.Trace {
		if ev.Step == selector.StepInitialize {
			units = append(units, ev.Unit)
		}
	}
	return units
}

// EdgeCount returns the number of edges in the recorded build.
func (r *Result) EdgeCount() int {
	if r.Build == nil {
		return 0
	}
	n := 0
	for _, b := range r.Build.Branches {
		n += len(b.Edges)
	}
	return n
}
