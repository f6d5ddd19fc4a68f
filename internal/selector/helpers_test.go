package selector

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/testutil"
	"github.com/roach88/unitsel/internal/unit"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPackage(t *testing.T, components ...string) *state.GenericPackage {
	t.Helper()
	if len(components) == 0 {
		components = []string{"H2O", "CO2"}
	}
	pkg, err := state.NewGenericPackage("generic", components, nil)
	require.NoError(t, err)
	return pkg
}

// fixture is a flowsheet owning N candidates with one inlet and one outlet
// each.
type fixture struct {
	pkg   *state.GenericPackage
	fs    *unit.Flowsheet
	units []*testutil.Candidate
	log   *testutil.CallLog
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	f := &fixture{pkg: newTestPackage(t), fs: unit.NewFlowsheet("fs"), log: &testutil.CallLog{}}
	for _, n := range names {
		c, err := testutil.NewCandidate(n, f.pkg, f.log, []string{"inlet"}, []string{"outlet"})
		require.NoError(t, err)
		require.NoError(t, f.fs.Attach(c))
		f.units = append(f.units, c)
	}
	return f
}

func (f *fixture) candidates() []unit.Candidate {
	out := make([]unit.Candidate, len(f.units))
	for i, u := range f.units {
		out[i] = u
	}
	return out
}

func (f *fixture) inlets() []*state.Point {
	out := make([]*state.Point, len(f.units))
	for i, u := range f.units {
		out[i] = u.Inlets()[0]
	}
	return out
}

func (f *fixture) outlets() []*state.Point {
	out := make([]*state.Point, len(f.units))
	for i, u := range f.units {
		out[i] = u.Outlets()[0]
	}
	return out
}

// fanOutConfig maps one inlet and one outlet port across every branch.
func (f *fixture) fanOutConfig() Config {
	return Config{
		Units:   f.candidates(),
		Parent:  f.fs,
		Source:  f.units[0],
		Sink:    f.units[0],
		Inlets:  PortMap{1: f.inlets()},
		Outlets: PortMap{1: f.outlets()},
	}
}

func (f *fixture) selector(cfg Config, opts ...Option) *UnitSelector {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New("sel", cfg, opts...)
}

// memRecorder keeps records in memory.
type memRecorder struct {
	builds []BuildRecord
	events []InitEvent
	err    error
}

func (r *memRecorder) RecordBuild(_ context.Context, rec BuildRecord) error {
	r.builds = append(r.builds, rec)
	return r.err
}

func (r *memRecorder) RecordInitEvent(_ context.Context, ev InitEvent) error {
	r.events = append(r.events, ev)
	return r.err
}

// stubTemplate supplies a package and args without being a candidate.
type stubTemplate struct {
	pkg  state.Package
	args state.Args
}

func (s stubTemplate) PropertyPackage() state.Package  { return s.pkg }
func (s stubTemplate) PropertyPackageArgs() state.Args { return s.args }
