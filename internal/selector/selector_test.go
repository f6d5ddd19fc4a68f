package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

func TestBuildTwoCandidatesFanOut(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	branches := sel.Branches()
	require.Len(t, branches, 2)
	in1, ok := sel.Port(ir.Inlet, 1)
	require.True(t, ok)
	out1, ok := sel.Port(ir.Outlet, 1)
	require.True(t, ok)

	for i, b := range branches {
		assert.Equal(t, i+1, b.Index())
		assert.Same(t, f.units[i], b.Unit())

		require.Len(t, b.InletEdges(), 1)
		e := b.InletEdges()[0]
		assert.Equal(t, ir.EdgeID{Branch: i + 1, Direction: ir.Inlet, Port: 1}, e.ID)
		assert.Same(t, in1.Point, e.Source)
		assert.Same(t, f.units[i].Inlets()[0], e.Dest)

		require.Len(t, b.OutletEdges(), 1)
		e = b.OutletEdges()[0]
		assert.Equal(t, ir.EdgeID{Branch: i + 1, Direction: ir.Outlet, Port: 1}, e.ID)
		assert.Same(t, f.units[i].Outlets()[0], e.Source)
		assert.Same(t, out1.Point, e.Dest)
	}

	assert.Equal(t, "inlet_to_unit_arc_2", branches[1].InletEdges()[0].Name())
	assert.Equal(t, "unit_to_outlet_arc_1", branches[0].OutletEdges()[0].Name())
	assert.Equal(t, []string{"inlet_1", "outlet_1"}, sel.Connectors())

	d := sel.Disjunction()
	require.NotNil(t, d)
	assert.Equal(t, 2, d.Len())
	assert.True(t, d.Feasible([]bool{true, false}))
	assert.True(t, d.Feasible([]bool{false, true}))
	assert.False(t, d.Feasible([]bool{true, true}))
	assert.False(t, d.Feasible([]bool{false, false}))

	// Candidates moved out of the flowsheet into their branches.
	assert.Equal(t, 0, f.fs.Len())
	_, owned := f.fs.Get("hx1")
	assert.False(t, owned)
}

func TestBuildSingleElementMappings(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.Inlets = PortMap{
		1: {f.units[0].Inlets()[0]},
		2: {f.units[1].Inlets()[0]},
	}
	sel := f.selector(cfg)
	require.NoError(t, sel.Build(context.Background()))

	branches := sel.Branches()
	require.Len(t, branches[0].InletEdges(), 1)
	require.Len(t, branches[1].InletEdges(), 1)
	assert.Equal(t, 1, branches[0].InletEdges()[0].ID.Port)
	assert.Equal(t, 2, branches[1].InletEdges()[0].ID.Port)
	assert.Len(t, sel.Ports(ir.Inlet), 2)
	assert.Len(t, sel.Ports(ir.Outlet), 1)
	assert.Equal(t, []string{"inlet_1", "inlet_2", "outlet_1"}, sel.Connectors())
}

func TestBuildSingleCandidate(t *testing.T) {
	f := newFixture(t, "hx1")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	require.Len(t, sel.Branches(), 1)
	assert.Len(t, sel.Edges(), 2)
	assert.True(t, sel.Disjunction().Feasible([]bool{true}))
	assert.False(t, sel.Disjunction().Feasible([]bool{false}))
}

func TestBuildUnmappedBranch(t *testing.T) {
	f := newFixture(t, "hx1", "hx2", "hx3")
	cfg := f.fanOutConfig()
	cfg.Inlets = PortMap{
		1: {f.units[0].Inlets()[0]},
		2: {f.units[1].Inlets()[0]},
	}
	sel := f.selector(cfg)

	err := sel.Build(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeUnmappedBranch, ErrorCode(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Branch)

	// Nothing was created or moved.
	assert.Empty(t, sel.Branches())
	assert.Empty(t, sel.Edges())
	assert.Nil(t, sel.Disjunction())
	assert.Equal(t, 3, f.fs.Len())
}

func TestBuildConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, cfg *Config)
		code   string
	}{
		{
			name:   "no candidates",
			mutate: func(_ *fixture, cfg *Config) { cfg.Units = nil },
			code:   ErrCodeNoCandidates,
		},
		{
			name:   "nil candidate",
			mutate: func(_ *fixture, cfg *Config) { cfg.Units[1] = nil },
			code:   ErrCodeInvalidCandidate,
		},
		{
			name:   "duplicate candidate",
			mutate: func(f *fixture, cfg *Config) { cfg.Units[1] = f.units[0] },
			code:   ErrCodeInvalidCandidate,
		},
		{
			name:   "dynamic",
			mutate: func(_ *fixture, cfg *Config) { cfg.Dynamic = true },
			code:   ErrCodeUnsupportedFlag,
		},
		{
			name:   "holdup",
			mutate: func(_ *fixture, cfg *Config) { cfg.HasHoldup = true },
			code:   ErrCodeUnsupportedFlag,
		},
		{
			name:   "missing source",
			mutate: func(_ *fixture, cfg *Config) { cfg.Source = nil },
			code:   ErrCodeMissingTemplate,
		},
		{
			name:   "sink without package",
			mutate: func(_ *fixture, cfg *Config) { cfg.Sink = stubTemplate{} },
			code:   ErrCodeMissingTemplate,
		},
		{
			name: "ambiguous fan-out length",
			mutate: func(f *fixture, cfg *Config) {
				cfg.Inlets = PortMap{1: f.inlets()[:2]}
			},
			code: ErrCodeAmbiguousMapping,
		},
		{
			name: "single element beyond branch count",
			mutate: func(f *fixture, cfg *Config) {
				cfg.Inlets = PortMap{
					1: f.inlets(),
					2: {f.units[1].Inlets()[0]},
					3: {f.units[2].Inlets()[0]},
					4: {f.units[0].Inlets()[0]},
				}
			},
			code: ErrCodeBranchOutOfRange,
		},
		{
			name: "port gap",
			mutate: func(f *fixture, cfg *Config) {
				cfg.Inlets = PortMap{1: f.inlets(), 3: f.inlets()}
			},
			code: ErrCodePortIndex,
		},
		{
			name: "outlet used as inlet",
			mutate: func(f *fixture, cfg *Config) {
				cfg.Inlets = PortMap{1: f.outlets()}
			},
			code: ErrCodeForeignPoint,
		},
		{
			name: "point of another branch",
			mutate: func(f *fixture, cfg *Config) {
				in := f.inlets()
				in[0], in[1] = in[1], in[0]
				cfg.Inlets = PortMap{1: in}
			},
			code: ErrCodeForeignPoint,
		},
		{
			name: "no outlets",
			mutate: func(_ *fixture, cfg *Config) {
				cfg.Outlets = nil
			},
			code: ErrCodeUnmappedBranch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "hx1", "hx2", "hx3")
			cfg := f.fanOutConfig()
			tt.mutate(f, &cfg)
			sel := f.selector(cfg)

			err := sel.Build(context.Background())
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "got %v", err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.Empty(t, sel.Edges())
			assert.Equal(t, 3, f.fs.Len())
		})
	}
}

func TestBuildTwiceFails(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	err := sel.Build(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeAlreadyBuilt, ErrorCode(err))
	assert.Len(t, sel.Branches(), 2)
	assert.Len(t, sel.Edges(), 4)
	assert.True(t, sel.Built())
}

func TestBuildAfterFailureIsUnusable(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.Units = nil
	sel := f.selector(cfg)
	require.Error(t, sel.Build(context.Background()))

	err := sel.Build(context.Background())
	assert.True(t, IsBurntToast(err))
	assert.Equal(t, ErrCodeUnusable, ErrorCode(err))
}

func TestBuildWithoutConnectors(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.ConstructPorts = Bool(false)
	sel := f.selector(cfg)
	require.NoError(t, sel.Build(context.Background()))

	assert.Empty(t, sel.Connectors())
	_, ok := sel.Connector("inlet_1")
	assert.False(t, ok)

	p, ok := sel.Port(ir.Inlet, 1)
	require.True(t, ok)
	assert.False(t, p.Exposed)
	assert.NotNil(t, p.State())
}

func TestBuildConnectorLookup(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	p, ok := sel.Connector("outlet_1")
	require.True(t, ok)
	assert.Equal(t, ir.Outlet, p.Direction)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "sel", p.Point.Owner)
	assert.Equal(t, "sel.outlet_1_state", p.State().Name())
	assert.Equal(t, "Selector Unit Outlet", p.State().Doc())

	_, ok = sel.Connector("inlet_2")
	assert.False(t, ok)
}

func TestPortStateArgs(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	p, _ := sel.Port(ir.Inlet, 1)
	args := p.State().Args()
	assert.Equal(t, false, args[state.ArgHasPhaseEquilibrium])
	assert.Equal(t, true, args[state.ArgDefinedState])

	// Independent storage from the template's own points.
	require.NoError(t, p.State().Set(state.VarFlowMol, 42))
	v, _ := f.units[0].Inlets()[0].State.Value(state.VarFlowMol)
	assert.NotEqual(t, 42.0, v)
}

func TestBuildPropertyNotSupported(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.Source = stubTemplate{pkg: f.pkg, args: state.Args{"flash": true}}
	sel := f.selector(cfg)

	err := sel.Build(context.Background())
	require.Error(t, err)
	assert.True(t, IsPropertyNotSupported(err))
	assert.Equal(t, ErrCodePropertyUnsupported, ErrorCode(err))

	var nse *state.NotSupportedError
	assert.ErrorAs(t, err, &nse)
	assert.Equal(t, 2, f.fs.Len())
}

func TestBuildExpansionFailureRestoresCandidates(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.Source = stubTemplate{pkg: newTestPackage(t, "N2")}
	sel := f.selector(cfg)

	err := sel.Build(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeExpansion, ErrorCode(err))
	assert.Equal(t, []string{"hx1", "hx2"}, f.fs.Names())
	assert.Empty(t, sel.Branches())
}

func TestBuildRelocationFailureRestoresCandidates(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	_, err := f.fs.Detach("hx2")
	require.NoError(t, err)
	sel := f.selector(f.fanOutConfig())

	err = sel.Build(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeRelocation, ErrorCode(err))

	var notOwned *unit.NotOwnedError
	assert.ErrorAs(t, err, &notOwned)
	assert.Equal(t, []string{"hx1"}, f.fs.Names())
}

func TestBuildUnownedCandidates(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	for _, n := range []string{"hx1", "hx2"} {
		_, err := f.fs.Detach(n)
		require.NoError(t, err)
	}
	cfg := f.fanOutConfig()
	cfg.Parent = nil
	sel := f.selector(cfg)
	require.NoError(t, sel.Build(context.Background()))
	assert.Same(t, f.units[1], sel.Branches()[1].Unit())
}

func TestBuildExpandsEqualities(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	p, _ := sel.Port(ir.Inlet, 1)
	vars := p.State().Layout().Len()
	assert.Equal(t, 4*vars, sel.Equalities())

	b := sel.Branches()[1]
	eqs := b.Equalities()
	require.Len(t, eqs, 2*vars)
	assert.Equal(t, "hx2.inlet.flow_mol == sel.inlet_1.flow_mol", eqs[0].String())
	assert.Equal(t, ir.EdgeID{Branch: 2, Direction: ir.Outlet, Port: 1}, eqs[vars].Edge)
	assert.Equal(t, "sel.outlet_1", eqs[vars].Dest.String())
}

type countingExpander struct {
	calls int
	edges int
}

func (c *countingExpander) Expand(edges []*Edge) (map[ir.EdgeID][]Equality, error) {
	c.calls++
	c.edges = len(edges)
	return EqualityExpander{}.Expand(edges)
}

func TestBuildExpandsOnce(t *testing.T) {
	f := newFixture(t, "hx1", "hx2", "hx3")
	exp := &countingExpander{}
	sel := f.selector(f.fanOutConfig(), WithExpander(exp))
	require.NoError(t, sel.Build(context.Background()))
	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, 6, exp.edges)
}

func TestFingerprintStable(t *testing.T) {
	build := func(t *testing.T, swap bool) string {
		f := newFixture(t, "hx1", "hx2")
		cfg := f.fanOutConfig()
		if swap {
			cfg.Inlets = PortMap{1: {f.units[0].Inlets()[0]}, 2: {f.units[1].Inlets()[0]}}
		}
		sel := f.selector(cfg)
		require.NoError(t, sel.Build(context.Background()))
		fp, err := sel.Fingerprint()
		require.NoError(t, err)
		return fp
	}

	a := build(t, false)
	assert.Len(t, a, 64)
	assert.Equal(t, a, build(t, false))
	assert.NotEqual(t, a, build(t, true))
}

func TestFingerprintRequiresBuild(t *testing.T) {
	f := newFixture(t, "hx1")
	_, err := f.selector(f.fanOutConfig()).Fingerprint()
	assert.Equal(t, ErrCodeNotBuilt, ErrorCode(err))
}

func TestReport(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	rows := sel.Report()
	require.Len(t, rows, 2)
	assert.Equal(t, "inlet_1", rows[0].Port)
	assert.Equal(t, "inlet", rows[0].Direction)
	assert.Equal(t, "outlet_1", rows[1].Port)
	assert.True(t, rows[1].Exposed)
	require.NotEmpty(t, rows[0].Vars)
	assert.Equal(t, state.VarFlowMol, rows[0].Vars[0].Name)
}

func TestBuildRecordsStructure(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	rec := &memRecorder{}
	sel := f.selector(f.fanOutConfig(),
		WithRecorder(rec),
		WithClock(NewClockAt(10)),
		WithRunIDGenerator(NewFixedGenerator("build-1")))
	require.NoError(t, sel.Build(context.Background()))

	require.Len(t, rec.builds, 1)
	b := rec.builds[0]
	assert.Equal(t, "build-1", b.BuildID)
	assert.Equal(t, int64(11), b.Seq)
	assert.Equal(t, "sel", b.Selector)
	assert.Equal(t, []string{"inlet_1", "outlet_1"}, b.Connectors)
	require.Len(t, b.Branches, 2)
	assert.Equal(t, "hx2", b.Branches[1].Unit)
	require.Len(t, b.Branches[1].Edges, 2)
	assert.Equal(t, "sel.inlet_1", b.Branches[1].Edges[0].Source)
	assert.Equal(t, "hx2.inlet", b.Branches[1].Edges[0].Dest)

	fp, err := sel.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp, b.Fingerprint)
	assert.Equal(t, "build-1", sel.BuildID())
}

func TestRecorderFailureDoesNotFailBuild(t *testing.T) {
	f := newFixture(t, "hx1")
	rec := &memRecorder{err: assert.AnError}
	sel := f.selector(f.fanOutConfig(), WithRecorder(rec))
	require.NoError(t, sel.Build(context.Background()))
	assert.ErrorIs(t, sel.RecordErr(), assert.AnError)
}

func TestMixedStateBlockIgnored(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	cfg := f.fanOutConfig()
	cfg.MixedState = f.units[0].Inlets()[0].State
	sel := f.selector(cfg)
	require.NoError(t, sel.Build(context.Background()))
	assert.Len(t, sel.Edges(), 4)
}

func TestBuildWithPhaseEquilibriumCandidates(t *testing.T) {
	pkg, err := state.NewGenericPackage("generic", []string{"H2O"}, []string{"Liq", "Vap"})
	require.NoError(t, err)
	args := state.Args{state.ArgHasPhaseEquilibrium: true}

	fs := unit.NewFlowsheet("fs")
	var units []*unit.Passthrough
	for _, name := range []string{"flash1", "flash2"} {
		u, err := unit.NewPassthrough(name, pkg, args, []string{"inlet"}, []string{"outlet"})
		require.NoError(t, err)
		require.NoError(t, fs.Attach(u))
		units = append(units, u)
	}
	require.True(t, units[0].Inlets()[0].State.Layout().Has("phase_frac[Vap]"))

	sel := New("sel", Config{
		Units:   []unit.Candidate{units[0], units[1]},
		Parent:  fs,
		Source:  units[0],
		Sink:    units[0],
		Inlets:  PortMap{1: {units[0].Inlets()[0], units[1].Inlets()[0]}},
		Outlets: PortMap{1: {units[0].Outlets()[0], units[1].Outlets()[0]}},
	}, WithLogger(quietLogger()))
	require.NoError(t, sel.Build(context.Background()))

	port, ok := sel.Port(ir.Inlet, 1)
	require.True(t, ok)
	assert.False(t, port.State().Layout().Has("phase_frac[Vap]"), "ports are built without phase equilibrium")

	// flow, temperature, pressure, one mole fraction; two edges per branch
	assert.Equal(t, 2*2*4, sel.Equalities())
	for _, q := range sel.Branches()[0].Equalities() {
		assert.NotContains(t, q.Var, "phase_frac")
	}

	require.NoError(t, port.State().Set(state.VarFlowMol, 100))
	require.NoError(t, units[1].Inlets()[0].State.Set("phase_frac[Vap]", 0.4))
	require.NoError(t, sel.Initialize(context.Background(), nil))

	flow, _ := units[1].Inlets()[0].State.Value(state.VarFlowMol)
	assert.Equal(t, 100.0, flow)
	frac, _ := units[1].Inlets()[0].State.Value("phase_frac[Vap]")
	assert.Equal(t, 0.4, frac, "internal state is not seeded from the port")
}
