package model

import (
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

// SelectorName is the owner name of the selector's ports.
const SelectorName = "selector"

// Model is an assembled flowsheet ready to be built.
type Model struct {
	Spec      *ir.FlowsheetSpec
	Package   *state.GenericPackage
	Flowsheet *unit.Flowsheet

	// Units are the built units in declaration order.
	Units []*unit.Passthrough

	// Config references Units and Flowsheet.
	Config selector.Config
}

// Assemble builds the property package and units of spec, attaches the
// units to a flowsheet and resolves the selector configuration.
//
// spec should have passed compiler.Validate; Assemble reports the first
// problem it hits.
func Assemble(spec *ir.FlowsheetSpec) (*Model, error) {
	pkg, err := state.NewGenericPackage(spec.PropertyPackage.Name, spec.PropertyPackage.Components, spec.PropertyPackage.Phases)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
	}

	m := &Model{
		Spec:      spec,
		Package:   pkg,
		Flowsheet: unit.NewFlowsheet(spec.Name),
	}
	byName := make(map[string]*unit.Passthrough, len(spec.Units))
	for _, us := range spec.Units {
		if !ir.ValidUnitKinds[us.Kind] {
			return nil, fmt.Errorf("assemble %s: unit %s: unknown kind %q", spec.Name, us.Name, us.Kind)
		}
		u, err := unit.NewPassthrough(us.Name, pkg, nil, us.Inlets, us.Outlets, unit.WithFailure(us.Fail))
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
		}
		if err := m.Flowsheet.Attach(u); err != nil {
			return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
		}
		m.Units = append(m.Units, u)
		byName[us.Name] = u
	}

	cfg, err := resolveConfig(&spec.Selector, byName)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
	}
	cfg.Parent = m.Flowsheet
	m.Config = cfg
	return m, nil
}

// NewSelector creates an unbuilt selector over the model's configuration.
func (m *Model) NewSelector(opts ...selector.Option) *selector.UnitSelector {
	return selector.New(SelectorName, m.Config, opts...)
}

func resolveConfig(sel *ir.SelectorSpec, units map[string]*unit.Passthrough) (selector.Config, error) {
	cfg := selector.Config{
		ConstructPorts: selector.Bool(sel.ConstructPorts),
		Dynamic:        sel.Dynamic,
		HasHoldup:      sel.HasHoldup,
	}
	for _, name := range sel.Units {
		u, ok := units[name]
		if !ok {
			return cfg, fmt.Errorf("unit_disjunct: unknown unit %q", name)
		}
		cfg.Units = append(cfg.Units, u)
	}

	// A missing template is left nil for the selector to reject.
	if u, ok := units[sel.Source]; ok {
		cfg.Source = u
	}
	if u, ok := units[sel.Sink]; ok {
		cfg.Sink = u
	}

	var err error
	if cfg.Inlets, err = resolvePortMap(ir.Inlet, sel.Inlets, units); err != nil {
		return cfg, fmt.Errorf("unit_disjunct_inlet: %w", err)
	}
	if cfg.Outlets, err = resolvePortMap(ir.Outlet, sel.Outlets, units); err != nil {
		return cfg, fmt.Errorf("unit_disjunct_outlet: %w", err)
	}

	if sel.MixedState != "" {
		ref, err := ir.ParsePointRef(sel.MixedState)
		if err != nil {
			return cfg, fmt.Errorf("mixed_state_block: %w", err)
		}
		p, err := findPoint(units, ref, 0)
		if err != nil {
			return cfg, fmt.Errorf("mixed_state_block: %w", err)
		}
		cfg.MixedState = p.State
	}
	return cfg, nil
}

func resolvePortMap(dir ir.Direction, refs map[int][]ir.PointRef, units map[string]*unit.Passthrough) (selector.PortMap, error) {
	if refs == nil {
		return nil, nil
	}
	out := make(selector.PortMap, len(refs))
	for k, list := range refs {
		points := make([]*state.Point, len(list))
		for i, ref := range list {
			p, err := findPoint(units, ref, dir)
			if err != nil {
				return nil, fmt.Errorf("%d[%d]: %w", k, i, err)
			}
			points[i] = p
		}
		out[k] = points
	}
	return out, nil
}

// findPoint looks ref up on its unit. dir 0 searches both sides.
func findPoint(units map[string]*unit.Passthrough, ref ir.PointRef, dir ir.Direction) (*state.Point, error) {
	u, ok := units[ref.Unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", ref.Unit)
	}
	if dir != ir.Outlet {
		if p, ok := unit.FindInlet(u, ref.Point); ok {
			return p, nil
		}
	}
	if dir != ir.Inlet {
		if p, ok := unit.FindOutlet(u, ref.Point); ok {
			return p, nil
		}
	}
	if dir == 0 {
		return nil, fmt.Errorf("unit %s has no point %q", ref.Unit, ref.Point)
	}
	return nil, fmt.Errorf("unit %s has no %s %q", ref.Unit, dir, ref.Point)
}
