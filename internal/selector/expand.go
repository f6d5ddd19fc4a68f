package selector

import (
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
)

// Equality is one expanded edge constraint: Dest.Var == Source.Var.
type Equality struct {
	Edge   ir.EdgeID   `json:"edge"`
	Var    string      `json:"var"`
	Dest   ir.PointRef `json:"dest"`
	Source ir.PointRef `json:"source"`
}

// String renders the constraint, e.g. "hx1.inlet.flow_mol == sel.inlet_1.flow_mol".
func (q Equality) String() string {
	return fmt.Sprintf("%s.%s == %s.%s", q.Dest, q.Var, q.Source, q.Var)
}

// Expander turns declared edges into explicit equality constraints.
// Build calls Expand exactly once, with every edge of every branch in both
// directions.
type Expander interface {
	Expand(edges []*Edge) (map[ir.EdgeID][]Equality, error)
}

// EqualityExpander produces one equality per port variable. Both ends of an
// edge must expose the same port variables; internal state is not connected.
type EqualityExpander struct{}

// Expand implements Expander.
func (EqualityExpander) Expand(edges []*Edge) (map[ir.EdgeID][]Equality, error) {
	out := make(map[ir.EdgeID][]Equality, len(edges))
	for _, e := range edges {
		if _, dup := out[e.ID]; dup {
			return nil, fmt.Errorf("edge %s declared twice", e.ID)
		}
		src, dst := e.Source.State, e.Dest.State
		if !src.Layout().PortEqual(dst.Layout()) {
			return nil, fmt.Errorf("edge %s (%s -> %s): port variables differ", e.Name(), e.Source, e.Dest)
		}
		names := src.Layout().PortNames()
		eqs := make([]Equality, 0, len(names))
		for _, v := range names {
			eqs = append(eqs, Equality{
				Edge:   e.ID,
				Var:    v,
				Dest:   e.Dest.Ref(),
				Source: e.Source.Ref(),
			})
		}
		out[e.ID] = eqs
	}
	return out, nil
}

var _ Expander = EqualityExpander{}

// equalityCount sums constraints across expanded edges.
func equalityCount(m map[ir.EdgeID][]Equality) int {
	n := 0
	for _, eqs := range m {
		n += len(eqs)
	}
	return n
}

// blockVars is a helper for reports.
func blockVars(b *state.Block) []state.Var {
	if b == nil {
		return nil
	}
	return b.Vars()
}
