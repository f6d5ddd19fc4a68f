package unit

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/unitsel/internal/state"
)

// ErrForcedFailure is returned by a Passthrough configured to fail.
var ErrForcedFailure = errors.New("forced initialization failure")

// Passthrough is a minimal candidate whose initialization seeds every outlet
// from its first inlet. It has no equations of its own; it exists so that a
// flowsheet can be assembled and exercised without a unit-operation library.
type Passthrough struct {
	name    string
	pkg     state.Package
	args    state.Args
	inlets  []*state.Point
	outlets []*state.Point
	fail    bool

	initCount int
	lastOpts  Options
}

// PassthroughOption configures a Passthrough.
type PassthroughOption func(*Passthrough)

// WithFailure makes Initialize return ErrForcedFailure.
func WithFailure(fail bool) PassthroughOption {
	return func(p *Passthrough) {
		p.fail = fail
	}
}

// NewPassthrough builds a unit with one state block per inlet and outlet.
// Inlet states are built with defined_state=true, outlet states with false.
func NewPassthrough(name string, pkg state.Package, args state.Args, inlets, outlets []string, opts ...PassthroughOption) (*Passthrough, error) {
	if pkg == nil {
		return nil, fmt.Errorf("unit %s: property package is required", name)
	}
	if len(inlets) == 0 || len(outlets) == 0 {
		return nil, fmt.Errorf("unit %s: at least one inlet and one outlet are required", name)
	}
	p := &Passthrough{name: name, pkg: pkg, args: maps.Clone(args)}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.inlets, err = p.buildPoints(inlets, true); err != nil {
		return nil, err
	}
	if p.outlets, err = p.buildPoints(outlets, false); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Passthrough) buildPoints(names []string, defined bool) ([]*state.Point, error) {
	points := make([]*state.Point, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("unit %s: duplicate point %q", p.name, n)
		}
		seen[n] = true

		args := maps.Clone(p.args)
		if args == nil {
			args = state.Args{}
		}
		args[state.ArgDefinedState] = defined
		block, err := p.pkg.BuildStateBlock(p.name+"."+n, "", args)
		if err != nil {
			return nil, fmt.Errorf("unit %s: point %s: %w", p.name, n, err)
		}
		points = append(points, state.NewPoint(p.name, n, block))
	}
	return points, nil
}

// Name implements Candidate.
func (p *Passthrough) Name() string { return p.name }

// Inlets implements Candidate.
func (p *Passthrough) Inlets() []*state.Point { return p.inlets }

// Outlets implements Candidate.
func (p *Passthrough) Outlets() []*state.Point { return p.outlets }

// PropertyPackage implements Template.
func (p *Passthrough) PropertyPackage() state.Package { return p.pkg }

// PropertyPackageArgs implements Template.
func (p *Passthrough) PropertyPackageArgs() state.Args { return maps.Clone(p.args) }

// Initialize implements Candidate.
func (p *Passthrough) Initialize(ctx context.Context, opts Options) error {
	p.initCount++
	p.lastOpts = opts
	if p.fail {
		return fmt.Errorf("unit %s: %w", p.name, ErrForcedFailure)
	}
	for _, out := range p.outlets {
		if _, err := state.Propagate(p.inlets[0], out); err != nil {
			return fmt.Errorf("unit %s: %w", p.name, err)
		}
	}
	return nil
}

// InitCount returns how many times Initialize has been called.
func (p *Passthrough) InitCount() int { return p.initCount }

// LastOptions returns the options passed to the latest Initialize call.
func (p *Passthrough) LastOptions() Options { return p.lastOpts }
