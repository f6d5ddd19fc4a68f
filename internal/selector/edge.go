package selector

import (
	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
)

// Edge is a directed link between two connection points, scoped to one
// branch. Inlet edges run port -> candidate; outlet edges run candidate ->
// port.
type Edge struct {
	ID     ir.EdgeID
	Source *state.Point
	Dest   *state.Point

	// Equalities are filled in by the Expander at the end of Build.
	Equalities []Equality
}

// Name returns the diagnostic name of the edge.
func (e *Edge) Name() string {
	return e.ID.Name()
}

// newEdge orients an edge between a port and a candidate point.
func newEdge(id ir.EdgeID, port *Port, point *state.Point) *Edge {
	if id.Direction == ir.Outlet {
		return &Edge{ID: id, Source: point, Dest: port.Point}
	}
	return &Edge{ID: id, Source: port.Point, Dest: point}
}
