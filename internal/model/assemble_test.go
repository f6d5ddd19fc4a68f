package model

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/state"
)

func testSpec() *ir.FlowsheetSpec {
	return &ir.FlowsheetSpec{
		Name: "fs1",
		PropertyPackage: ir.PackageSpec{
			Name:       "generic",
			Components: []string{"H2O", "CO2"},
		},
		Units: []ir.UnitSpec{
			{Name: "hx1", Kind: "passthrough", Inlets: []string{"inlet"}, Outlets: []string{"outlet"}},
			{Name: "hx2", Kind: "passthrough", Inlets: []string{"inlet"}, Outlets: []string{"outlet"}},
		},
		Selector: ir.SelectorSpec{
			Units:  []string{"hx1", "hx2"},
			Source: "hx1",
			Sink:   "hx1",
			Inlets: map[int][]ir.PointRef{
				1: {{Unit: "hx1", Point: "inlet"}, {Unit: "hx2", Point: "inlet"}},
			},
			Outlets: map[int][]ir.PointRef{
				1: {{Unit: "hx1", Point: "outlet"}, {Unit: "hx2", Point: "outlet"}},
			},
			ConstructPorts: true,
		},
	}
}

func newTestSelector(t *testing.T, m *Model) *selector.UnitSelector {
	t.Helper()
	sel := m.NewSelector(selector.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, sel.Build(context.Background()))
	return sel
}

func TestAssemble(t *testing.T) {
	m, err := Assemble(testSpec())
	require.NoError(t, err)

	assert.Equal(t, []string{"hx1", "hx2"}, m.Flowsheet.Names())
	require.Len(t, m.Units, 2)
	require.Len(t, m.Config.Units, 2)
	assert.Same(t, m.Units[1], m.Config.Units[1])
	assert.Same(t, m.Flowsheet, m.Config.Parent)
	assert.Same(t, m.Units[0].Inlets()[0], m.Config.Inlets[1][0])
	assert.Same(t, m.Units[1].Outlets()[0], m.Config.Outlets[1][1])
	require.NotNil(t, m.Config.ConstructPorts)
	assert.True(t, *m.Config.ConstructPorts)

	sel := newTestSelector(t, m)
	assert.Equal(t, 0, m.Flowsheet.Len())
	assert.Equal(t, []string{"inlet_1", "outlet_1"}, sel.Connectors())
	p, _ := sel.Port(ir.Inlet, 1)
	assert.Equal(t, "selector.inlet_1", p.Point.String())
}

func TestAssembleFailingUnit(t *testing.T) {
	spec := testSpec()
	spec.Units[1].Fail = true
	m, err := Assemble(spec)
	require.NoError(t, err)

	sel := newTestSelector(t, m)
	err = sel.Initialize(context.Background(), nil)
	assert.True(t, selector.IsInitializationError(err))
	assert.Equal(t, 1, m.Units[0].InitCount())
}

func TestAssembleMixedState(t *testing.T) {
	spec := testSpec()
	spec.Selector.MixedState = "hx2.outlet"
	m, err := Assemble(spec)
	require.NoError(t, err)
	assert.Same(t, m.Units[1].Outlets()[0].State, m.Config.MixedState)
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *ir.FlowsheetSpec)
		msg    string
	}{
		{"no components", func(s *ir.FlowsheetSpec) { s.PropertyPackage.Components = nil }, "component"},
		{"unknown kind", func(s *ir.FlowsheetSpec) { s.Units[0].Kind = "pump" }, "unknown kind"},
		{"unknown candidate", func(s *ir.FlowsheetSpec) { s.Selector.Units[1] = "hx9" }, "unit_disjunct"},
		{"outlet as inlet", func(s *ir.FlowsheetSpec) {
			s.Selector.Inlets[1][0] = ir.PointRef{Unit: "hx1", Point: "outlet"}
		}, `has no inlet "outlet"`},
		{"bad mixed state", func(s *ir.FlowsheetSpec) { s.Selector.MixedState = "hx1" }, "mixed_state_block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(spec)
			_, err := Assemble(spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAssembleMissingSinkIsSelectorError(t *testing.T) {
	spec := testSpec()
	spec.Selector.Sink = "nobody"
	m, err := Assemble(spec)
	require.NoError(t, err)

	err = m.NewSelector().Build(context.Background())
	assert.Equal(t, selector.ErrCodeMissingTemplate, selector.ErrorCode(err))
	assert.Equal(t, 2, m.Flowsheet.Len())
}

func TestAssembleUsesPackageArgs(t *testing.T) {
	m, err := Assemble(testSpec())
	require.NoError(t, err)
	args := m.Units[0].Inlets()[0].State.Args()
	assert.Equal(t, true, args[state.ArgDefinedState])
}
