package state

import (
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
)

// Point is a named connection point exposing a Block.
// Owner is the name of the unit (or selector) the point belongs to.
type Point struct {
	Owner string
	Name  string
	State *Block
}

// NewPoint creates a connection point.
func NewPoint(owner, name string, block *Block) *Point {
	return &Point{Owner: owner, Name: name, State: block}
}

// Ref returns the "owner.name" reference of the point.
func (p *Point) Ref() ir.PointRef {
	return ir.PointRef{Unit: p.Owner, Point: p.Name}
}

// String implements fmt.Stringer.
func (p *Point) String() string {
	return p.Ref().String()
}

// Propagate copies port variable values from src into dst to seed an
// initial guess. Fixed variables of dst and internal variables of either
// block are left untouched. Both points must expose the same port variables.
//
// Propagate returns the number of variables copied.
func Propagate(src, dst *Point) (int, error) {
	if src == nil || dst == nil || src.State == nil || dst.State == nil {
		return 0, fmt.Errorf("propagate: nil point or state")
	}
	if !src.State.layout.PortEqual(dst.State.layout) {
		return 0, fmt.Errorf("propagate %s -> %s: port variables differ", src, dst)
	}
	copied := 0
	for i := range dst.State.layout.ports {
		if dst.State.fixed[i] {
			continue
		}
		dst.State.values[i] = src.State.values[i]
		copied++
	}
	return copied, nil
}
