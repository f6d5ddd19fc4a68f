package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/testutil"
	"github.com/roach88/unitsel/internal/unit"
)

func buildFixture(t *testing.T, opts []Option, names ...string) (*fixture, *UnitSelector) {
	t.Helper()
	f := newFixture(t, names...)
	sel := f.selector(f.fanOutConfig(), opts...)
	require.NoError(t, sel.Build(context.Background()))
	return f, sel
}

func TestInitializeVisitsBranchesInOrder(t *testing.T) {
	f, sel := buildFixture(t, nil, "hx1", "hx2", "hx3")
	opts := unit.Options{"outlvl": 3}

	require.NoError(t, sel.Initialize(context.Background(), opts))
	assert.Equal(t, []string{"hx1", "hx2", "hx3"}, f.log.Calls())
	for _, u := range f.units {
		assert.Equal(t, 1, u.InitCount())
		assert.Equal(t, opts, u.LastOptions())
	}
}

func TestInitializeFailFast(t *testing.T) {
	f := newFixture(t, "hx1", "hx2", "hx3")
	cause := errors.New("no convergence")
	f.units[1].Err = cause
	sel := f.selector(f.fanOutConfig())
	require.NoError(t, sel.Build(context.Background()))

	err := sel.Initialize(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsInitializationError(err))
	assert.Equal(t, ErrCodeUnitInit, ErrorCode(err))
	assert.ErrorIs(t, err, cause)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Branch)

	assert.Equal(t, []string{"hx1", "hx2"}, f.log.Calls())
	assert.Equal(t, 0, f.units[2].InitCount())

	// The selector is unusable afterwards.
	err = sel.Initialize(context.Background(), nil)
	assert.True(t, IsBurntToast(err))
	assert.Equal(t, ErrCodeUnusable, ErrorCode(err))
	assert.Equal(t, []string{"hx1", "hx2"}, f.log.Calls())
}

func TestInitializeBeforeBuild(t *testing.T) {
	f := newFixture(t, "hx1")
	sel := f.selector(f.fanOutConfig())
	err := sel.Initialize(context.Background(), nil)
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, ErrCodeNotBuilt, ErrorCode(err))
	assert.Empty(t, f.log.Calls())
}

func TestInitializeCanRepeat(t *testing.T) {
	f, sel := buildFixture(t, nil, "hx1", "hx2")
	require.NoError(t, sel.Initialize(context.Background(), nil))
	require.NoError(t, sel.Initialize(context.Background(), nil))
	assert.Equal(t, []string{"hx1", "hx2", "hx1", "hx2"}, f.log.Calls())
}

func TestInitializeSeedsInletsFromPorts(t *testing.T) {
	f, sel := buildFixture(t, nil, "hx1", "hx2")
	in, _ := sel.Connector("inlet_1")
	require.NoError(t, in.State().Set(state.VarFlowMol, 100))
	require.NoError(t, in.State().Set(state.VarTemperature, 350))

	// A fixed variable on a candidate inlet keeps its value.
	require.NoError(t, f.units[1].Inlets()[0].State.Fix(state.VarTemperature, 400))

	before := in.State().Values()
	require.NoError(t, sel.Initialize(context.Background(), nil))

	v, _ := f.units[0].Inlets()[0].State.Value(state.VarFlowMol)
	assert.Equal(t, 100.0, v)
	v, _ = f.units[0].Inlets()[0].State.Value(state.VarTemperature)
	assert.Equal(t, 350.0, v)
	v, _ = f.units[1].Inlets()[0].State.Value(state.VarTemperature)
	assert.Equal(t, 400.0, v)

	assert.Equal(t, before, in.State().Values())
}

func TestInitializeDoesNotPropagateOutlets(t *testing.T) {
	f, sel := buildFixture(t, nil, "hx1", "hx2")
	in, _ := sel.Connector("inlet_1")
	out, _ := sel.Connector("outlet_1")
	require.NoError(t, in.State().Set(state.VarFlowMol, 7))
	before := out.State().Values()

	require.NoError(t, sel.Initialize(context.Background(), nil))

	// The candidate seeded its own outlet, the selector port is untouched.
	v, _ := f.units[0].Outlets()[0].State.Value(state.VarFlowMol)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, before, out.State().Values())
}

func TestInitializeRecordsEvents(t *testing.T) {
	rec := &memRecorder{}
	_, sel := buildFixture(t, []Option{
		WithRecorder(rec),
		WithRunIDGenerator(NewFixedGenerator("build-1", "run-1")),
	}, "hx1", "hx2")

	require.NoError(t, sel.Initialize(context.Background(), nil))
	assert.Equal(t, "run-1", sel.RunID())

	type step struct {
		branch int
		step   InitStep
		edge   string
	}
	var got []step
	var last int64
	for _, ev := range rec.events {
		got = append(got, step{ev.Branch, ev.Step, ev.Edge})
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "build-1", ev.BuildID)
		assert.Greater(t, ev.Seq, last)
		last = ev.Seq
	}
	assert.Equal(t, []step{
		{1, StepPropagate, "inlet_to_unit_arc_1"},
		{1, StepInitialize, ""},
		{1, StepOutlet, "unit_to_outlet_arc_1"},
		{2, StepPropagate, "inlet_to_unit_arc_2"},
		{2, StepInitialize, ""},
		{2, StepOutlet, "unit_to_outlet_arc_2"},
	}, got)
	assert.Positive(t, rec.events[0].Copied)
}

func TestInitializeRecordsFailure(t *testing.T) {
	f := newFixture(t, "hx1", "hx2")
	f.units[0].Err = errors.New("boom")
	rec := &memRecorder{}
	sel := f.selector(f.fanOutConfig(), WithRecorder(rec))
	require.NoError(t, sel.Build(context.Background()))

	require.Error(t, sel.Initialize(context.Background(), nil))
	require.Len(t, rec.events, 2)
	assert.Equal(t, StepInitialize, rec.events[1].Step)
	assert.Equal(t, "boom", rec.events[1].Error)
}

func TestInitializeMultipleInletEdgesInPortOrder(t *testing.T) {
	f := newFixture(t)
	var units []*testutil.Candidate
	for _, n := range []string{"mix1", "mix2"} {
		c, err := testutil.NewCandidate(n, f.pkg, f.log, []string{"feed_a", "feed_b"}, []string{"outlet"})
		require.NoError(t, err)
		require.NoError(t, f.fs.Attach(c))
		units = append(units, c)
	}
	pick := func(in bool, idx int) []*state.Point {
		var out []*state.Point
		for _, u := range units {
			if in {
				out = append(out, u.Inlets()[idx])
			} else {
				out = append(out, u.Outlets()[idx])
			}
		}
		return out
	}

	rec := &memRecorder{}
	sel := f.selector(Config{
		Units:   []unit.Candidate{units[0], units[1]},
		Parent:  f.fs,
		Source:  units[0],
		Sink:    units[0],
		Inlets:  PortMap{1: pick(true, 0), 2: pick(true, 1)},
		Outlets: PortMap{1: pick(false, 0)},
	}, WithRecorder(rec))
	require.NoError(t, sel.Build(context.Background()))

	edges := sel.Branches()[1].InletEdges()
	require.Len(t, edges, 2)
	assert.Equal(t, ir.EdgeID{Branch: 2, Direction: ir.Inlet, Port: 1}, edges[0].ID)
	assert.Equal(t, ir.EdgeID{Branch: 2, Direction: ir.Inlet, Port: 2}, edges[1].ID)
	assert.Equal(t, "mix2.feed_b", edges[1].Dest.String())

	in2, _ := sel.Connector("inlet_2")
	require.NoError(t, in2.State().Set(state.VarPressure, 2e5))
	require.NoError(t, sel.Initialize(context.Background(), nil))

	v, _ := units[0].Inlets()[1].State.Value(state.VarPressure)
	assert.Equal(t, 2e5, v)
	v, _ = units[0].Inlets()[0].State.Value(state.VarPressure)
	assert.Equal(t, 101325.0, v)

	require.Len(t, rec.events, 8)
	assert.Equal(t, StepPropagate, rec.events[0].Step)
	assert.Equal(t, StepPropagate, rec.events[1].Step)
	assert.Equal(t, StepInitialize, rec.events[2].Step)
}
