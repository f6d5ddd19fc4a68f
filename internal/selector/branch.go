package selector

import (
	"fmt"

	"github.com/roach88/unitsel/internal/unit"
)

// Branch is one alternative: exactly one candidate plus the edges that wire
// it to the selector ports. A branch is active or inactive as a whole.
type Branch struct {
	index   int
	unit    unit.Candidate
	inlets  []*Edge
	outlets []*Edge
}

func newBranch(index int) *Branch {
	return &Branch{index: index}
}

// Index returns the 1-based branch index.
func (b *Branch) Index() int { return b.index }

// Unit returns the candidate held by the branch.
func (b *Branch) Unit() unit.Candidate { return b.unit }

// InletEdges returns the inlet edges in port order.
func (b *Branch) InletEdges() []*Edge { return b.inlets }

// OutletEdges returns the outlet edges in port order.
func (b *Branch) OutletEdges() []*Edge { return b.outlets }

// Edges returns inlet edges followed by outlet edges.
func (b *Branch) Edges() []*Edge {
	out := make([]*Edge, 0, len(b.inlets)+len(b.outlets))
	out = append(out, b.inlets...)
	return append(out, b.outlets...)
}

// Equalities returns every equality constraint owned by the branch.
func (b *Branch) Equalities() []Equality {
	var out []Equality
	for _, e := range b.Edges() {
		out = append(out, e.Equalities...)
	}
	return out
}

// OwnerName implements unit.Owner.
func (b *Branch) OwnerName() string {
	return fmt.Sprintf("unit_disjunct_%d", b.index)
}

// Attach implements unit.Owner. A branch holds exactly one candidate.
func (b *Branch) Attach(c unit.Candidate) error {
	if b.unit != nil {
		if b.unit.Name() == c.Name() {
			return &unit.CollisionError{Owner: b.OwnerName(), Name: c.Name()}
		}
		return fmt.Errorf("%s already holds %q", b.OwnerName(), b.unit.Name())
	}
	b.unit = c
	return nil
}

// Detach implements unit.Owner.
func (b *Branch) Detach(name string) (unit.Candidate, error) {
	if b.unit == nil || b.unit.Name() != name {
		return nil, &unit.NotOwnedError{Owner: b.OwnerName(), Name: name}
	}
	c := b.unit
	b.unit = nil
	return c, nil
}
