package selector

import (
	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
)

// Port is an externally visible inlet or outlet of the selector, backed by a
// state block of its own.
type Port struct {
	Direction ir.Direction
	Index     int
	Point     *state.Point

	// Exposed is true when the port is reachable as a named connector.
	Exposed bool
}

// Name returns the connector name, "inlet_<k>" or "outlet_<k>".
func (p *Port) Name() string {
	return p.Direction.ConnectorName(p.Index)
}

// State returns the port's state block.
func (p *Port) State() *state.Block {
	return p.Point.State
}

// portArgs returns the state args for a port built from tmpl's base args:
// phase equilibrium off, state fully defined.
func portArgs(base state.Args) state.Args {
	args := make(state.Args, len(base)+2)
	for k, v := range base {
		args[k] = v
	}
	args[state.ArgHasPhaseEquilibrium] = false
	args[state.ArgDefinedState] = true
	return args
}
