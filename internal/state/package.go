package state

import (
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Standard state block arguments.
const (
	ArgHasPhaseEquilibrium = "has_phase_equilibrium"
	ArgDefinedState        = "defined_state"
)

// Args configures state block construction.
type Args map[string]any

// Bool returns a boolean argument, or def if unset.
// Non-boolean values are reported as not ok.
func (a Args) Bool(key string, def bool) (bool, bool) {
	v, present := a[key]
	if !present {
		return def, true
	}
	b, ok := v.(bool)
	return b, ok
}

// Package is a property package: a factory for state blocks.
type Package interface {
	// Name identifies the package.
	Name() string

	// BuildStateBlock returns a new, independent block.
	// Returns *NotSupportedError when args request something the package
	// cannot provide.
	BuildStateBlock(name, doc string, args Args) (*Block, error)
}

// NotSupportedError reports a state configuration the package cannot satisfy.
type NotSupportedError struct {
	Package string
	Arg     string
	Message string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("property package %s: %s: %s", e.Package, e.Arg, e.Message)
}

// Default variable names of the generic package.
const (
	VarFlowMol     = "flow_mol"
	VarTemperature = "temperature"
	VarPressure    = "pressure"
)

// LayoutCacheSize bounds the layouts shared by all generic packages.
const LayoutCacheSize = 64

// layouts is keyed by component set, phase set and equilibrium flag, so
// packages describing the same streams share one immutable Layout.
var layouts = mustLayoutCache(LayoutCacheSize)

func mustLayoutCache(size int) *lru.Cache[string, *Layout] {
	c, err := lru.New[string, *Layout](size)
	if err != nil {
		panic(err)
	}
	return c
}

// GenericPackage describes a stream by total molar flow, temperature,
// pressure and component mole fractions. These are the port variables. With
// phase equilibrium enabled each block also carries one internal phase
// fraction per phase, which connections never see.
type GenericPackage struct {
	name       string
	components []string
	phases     []string
}

// NewGenericPackage creates a generic package. At least one component is
// required; phases default to a single "Liq" phase.
func NewGenericPackage(name string, components, phases []string) (*GenericPackage, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("generic package %s: at least one component is required", name)
	}
	seen := make(map[string]bool, len(components))
	for _, c := range components {
		if seen[c] {
			return nil, fmt.Errorf("generic package %s: duplicate component %q", name, c)
		}
		seen[c] = true
	}
	if len(phases) == 0 {
		phases = []string{"Liq"}
	}
	return &GenericPackage{
		name:       name,
		components: slices.Clone(components),
		phases:     slices.Clone(phases),
	}, nil
}

// Name implements Package.
func (p *GenericPackage) Name() string { return p.name }

// Components returns the component list.
func (p *GenericPackage) Components() []string { return slices.Clone(p.components) }

// BuildStateBlock implements Package.
func (p *GenericPackage) BuildStateBlock(name, doc string, args Args) (*Block, error) {
	for key := range args {
		if key != ArgHasPhaseEquilibrium && key != ArgDefinedState {
			return nil, &NotSupportedError{Package: p.name, Arg: key, Message: "unknown argument"}
		}
	}
	equilibrium, ok := args.Bool(ArgHasPhaseEquilibrium, false)
	if !ok {
		return nil, &NotSupportedError{Package: p.name, Arg: ArgHasPhaseEquilibrium, Message: "must be a bool"}
	}
	if _, ok := args.Bool(ArgDefinedState, false); !ok {
		return nil, &NotSupportedError{Package: p.name, Arg: ArgDefinedState, Message: "must be a bool"}
	}
	if equilibrium && len(p.phases) < 2 {
		return nil, &NotSupportedError{
			Package: p.name,
			Arg:     ArgHasPhaseEquilibrium,
			Message: "phase equilibrium needs at least two phases",
		}
	}

	layout, err := p.layout(equilibrium)
	if err != nil {
		return nil, err
	}

	b := NewBlock(name, doc, layout, args)
	b.values[layout.index[VarFlowMol]] = 1
	b.values[layout.index[VarTemperature]] = 298.15
	b.values[layout.index[VarPressure]] = 101325
	frac := 1 / float64(len(p.components))
	for _, c := range p.components {
		b.values[layout.index[moleFracVar(c)]] = frac
	}
	return b, nil
}

// layout returns the shared layout for this package's components and phases.
func (p *GenericPackage) layout(equilibrium bool) (*Layout, error) {
	key := layoutKey(p.components, p.phases, equilibrium)
	if l, ok := layouts.Get(key); ok {
		return l, nil
	}

	names := []string{VarFlowMol, VarTemperature, VarPressure}
	for _, c := range p.components {
		names = append(names, moleFracVar(c))
	}
	l, err := NewLayout(names...)
	if err == nil && equilibrium {
		fracs := make([]string, len(p.phases))
		for i, ph := range p.phases {
			fracs[i] = phaseFracVar(ph)
		}
		l, err = l.WithInternal(fracs...)
	}
	if err != nil {
		return nil, fmt.Errorf("generic package %s: %w", p.name, err)
	}
	layouts.Add(key, l)
	return l, nil
}

func layoutKey(components, phases []string, equilibrium bool) string {
	return fmt.Sprintf("%s|%s|%t", strings.Join(components, ","), strings.Join(phases, ","), equilibrium)
}

func moleFracVar(component string) string {
	return "mole_frac_comp[" + strings.TrimSpace(component) + "]"
}

func phaseFracVar(phase string) string {
	return "phase_frac[" + strings.TrimSpace(phase) + "]"
}
