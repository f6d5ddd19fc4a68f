package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/unitsel/internal/compiler"
	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/model"
	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/store"
	"github.com/roach88/unitsel/internal/unit"
)

// Harness runs one scenario against a fresh in-memory store with
// deterministic IDs and a logical clock starting at zero.
type Harness struct {
	store  *store.Store
	ids    *selector.FixedGenerator
	clock  *selector.Clock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile and validate the flowsheet
//  2. Assemble units and build the selector, recording into the store
//  3. Seed guesses and initialize
//  4. Read the build and run back from the store
//  5. Check the expected outcome and evaluate assertions
//
// The returned error covers harness problems (unreadable spec, store
// failures). Selector errors are part of the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ids := scenario.IDs
	if len(ids) == 0 {
		ids = DefaultIDs
	}
	h := &Harness{
		store:  st,
		ids:    selector.NewFixedGenerator(ids...),
		clock:  selector.NewClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.execute(ctx, scenario, result); err != nil {
		return nil, err
	}

	checkExpect(scenario.Expect, result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	spec, err := loadFlowsheet(scenario)
	if err != nil {
		return err
	}
	if errs := compiler.Validate(spec); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		result.Failure = &Failure{
			Stage:   StageValidate,
			Code:    errs[0].Code,
			Message: strings.Join(msgs, "; "),
		}
		return nil
	}

	m, err := model.Assemble(spec)
	if err != nil {
		return fmt.Errorf("failed to assemble %s: %w", spec.Name, err)
	}
	sel := m.NewSelector(
		selector.WithRecorder(h.store),
		selector.WithLogger(h.logger),
		selector.WithClock(h.clock),
		selector.WithRunIDGenerator(h.ids),
	)
	defer h.snapshot(m, sel, result)

	if err := sel.Build(ctx); err != nil {
		result.Failure = failure(StageBuild, err)
		return nil
	}
	if result.Fingerprint, err = sel.Fingerprint(); err != nil {
		return fmt.Errorf("failed to fingerprint: %w", err)
	}
	build, err := h.store.ReadBuild(ctx, sel.BuildID())
	if err != nil {
		return fmt.Errorf("failed to read build: %w", err)
	}
	result.Build = &build

	if len(scenario.Guesses) > 0 {
		n, err := model.SeedGuesses(sel, scenario.Guesses)
		result.Seeded = n
		if err != nil {
			result.Failure = failure(StageGuess, err)
			return nil
		}
	}

	if scenario.Skip == StageInit {
		return nil
	}
	initErr := sel.Initialize(ctx, unit.Options(scenario.Options))
	if initErr != nil {
		result.Failure = failure(StageInit, initErr)
	}

	trace, err := h.store.ReadRun(ctx, sel.RunID())
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read run: %w", err)
	default:
		result.Trace = trace
	}
	if err := sel.RecordErr(); err != nil {
		return fmt.Errorf("recorder failed: %w", err)
	}
	return nil
}

// snapshot captures port and unit point values once the run is over.
func (h *Harness) snapshot(m *model.Model, sel *selector.UnitSelector, result *Result) {
	result.Streams = sel.Report()
	for _, u := range m.Units {
		for _, points := range [][]*state.Point{u.Inlets(), u.Outlets()} {
			for _, p := range points {
				result.Points[p.String()] = p.State.Values()
			}
		}
	}
	for _, row := range result.Streams {
		vals := make(map[string]float64, len(row.Vars))
		for _, v := range row.Vars {
			vals[v.Name] = v.Value
		}
		result.Points[row.Port] = vals
	}
}

func failure(stage string, err error) *Failure {
	f := &Failure{Stage: stage, Code: selector.ErrorCode(err), Message: err.Error()}
	var se *selector.Error
	if errors.As(err, &se) {
		f.Kind = string(se.Kind)
	}
	return f
}

// checkExpect compares the run's failure, if any, with the expectation.
func checkExpect(want *Expect, result *Result) {
	got := result.Failure
	switch {
	case want == nil && got == nil:
	case want == nil:
		result.AddError(fmt.Sprintf("unexpected %s failure: %s", got.Stage, got.Message))
	case got == nil:
		result.AddError(fmt.Sprintf("expected %s failure %s%s, but the run succeeded", want.Stage, want.Code, want.Kind))
	default:
		if got.Stage != want.Stage {
			result.AddError(fmt.Sprintf("expected failure at %s, got %s: %s", want.Stage, got.Stage, got.Message))
		}
		if want.Code != "" && got.Code != want.Code {
			result.AddError(fmt.Sprintf("expected code %s, got %s: %s", want.Code, got.Code, got.Message))
		}
		if want.Kind != "" && got.Kind != want.Kind {
			result.AddError(fmt.Sprintf("expected kind %s, got %s: %s", want.Kind, got.Kind, got.Message))
		}
	}
}

// loadFlowsheet compiles flowsheet.<name> from the scenario's CUE.
func loadFlowsheet(s *Scenario) (*ir.FlowsheetSpec, error) {
	src := []byte(s.Source)
	filename := s.Name + ".cue"
	if s.Spec != "" {
		data, err := os.ReadFile(s.Spec)
		if err != nil {
			return nil, fmt.Errorf("failed to read spec: %w", err)
		}
		src, filename = data, s.Spec
	}

	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", filename, err)
	}
	fv := v.LookupPath(cue.ParsePath("flowsheet." + s.Flowsheet))
	if !fv.Exists() {
		return nil, fmt.Errorf("flowsheet %q not found in %s", s.Flowsheet, filename)
	}
	spec, err := compiler.CompileFlowsheet(fv)
	if err != nil {
		return nil, fmt.Errorf("failed to compile flowsheet %s: %w", s.Flowsheet, err)
	}
	return spec, nil
}
