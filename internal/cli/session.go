package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/unitsel/internal/compiler"
	"github.com/roach88/unitsel/internal/model"
	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/store"
)

// newRunIDGenerator supplies build and run IDs. Tests swap it for a
// deterministic generator.
var newRunIDGenerator = func() selector.RunIDGenerator {
	return selector.UUIDv7Generator{}
}

// session is one selector over one flowsheet, recording into a store.
type session struct {
	model *model.Model
	sel   *selector.UnitSelector
	store *store.Store
}

// prepareModel loads specsDir, picks one flowsheet, validates and assembles
// it. Output has already been written when an error is returned.
func prepareModel(formatter *OutputFormatter, specsDir, name string) (*model.Model, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, outputLoadError(formatter, loadErrors[0])
	}
	if len(loadErrors) > 0 {
		errs := make([]compiler.ValidationError, 0, len(loadErrors))
		for _, err := range loadErrors {
			errs = append(errs, loadValidationError(err))
		}
		return nil, outputValidationErrors(formatter, errs)
	}

	spec, err := loadResult.Flowsheet(name)
	if err != nil {
		return nil, outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Using flowsheet %s from %s", spec.Name, specsDir)

	if errs := validateFlowsheet(spec); len(errs) > 0 {
		return nil, outputValidationErrors(formatter, errs)
	}

	m, err := model.Assemble(spec)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitFailure, "assemble failed", err)
	}
	return m, nil
}

// openSession opens the store at dbPath (in memory when empty) and creates a
// selector whose clock resumes after the last recorded seq.
func openSession(ctx context.Context, formatter *OutputFormatter, m *model.Model, dbPath string) (*session, error) {
	path := dbPath
	if path == "" {
		path = ":memory:"
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to read database", err)
	}

	sel := m.NewSelector(
		selector.WithRecorder(st),
		selector.WithLogger(formatter.Logger()),
		selector.WithClock(selector.NewClockAt(last)),
		selector.WithRunIDGenerator(newRunIDGenerator()),
	)
	return &session{model: m, sel: sel, store: st}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// build builds the selector and reads its record back from the store.
func (s *session) build(ctx context.Context, formatter *OutputFormatter) (*selector.BuildRecord, error) {
	if err := s.sel.Build(ctx); err != nil {
		return nil, outputSelectorError(formatter, "build", err)
	}
	rec, err := s.store.ReadBuild(ctx, s.sel.BuildID())
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to read build", err)
	}
	return &rec, nil
}

// trace returns the recorded events of the selector's run. A run that never
// reached its first step has none.
func (s *session) trace(ctx context.Context) ([]selector.InitEvent, error) {
	events, err := s.store.ReadRun(ctx, s.sel.RunID())
	if errors.Is(err, store.ErrNotFound) {
		return []selector.InitEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return events, nil
}

// SelectorErrorDetails is attached to JSON errors from Build and Initialize.
type SelectorErrorDetails struct {
	Stage  string `json:"stage"`
	Kind   string `json:"kind,omitempty"`
	Branch int    `json:"branch,omitempty"`
}

func selectorErrorDetails(stage string, err error) SelectorErrorDetails {
	d := SelectorErrorDetails{Stage: stage}
	var se *selector.Error
	if errors.As(err, &se) {
		d.Kind = string(se.Kind)
		d.Branch = se.Branch
	}
	return d
}

func selectorErrorCode(err error) string {
	if code := selector.ErrorCode(err); code != "" {
		return code
	}
	return ErrCodeGeneric
}

// outputSelectorError reports a Build or Initialize failure (exit code 1).
func outputSelectorError(formatter *OutputFormatter, stage string, err error) error {
	_ = formatter.Error(selectorErrorCode(err), err.Error(), selectorErrorDetails(stage, err))
	return WrapExitError(ExitFailure, stage+" failed", err)
}
