package ir

import (
	"fmt"
	"strings"
)

// Direction distinguishes inlet from outlet ports and edges.
type Direction int

const (
	// Inlet edges flow from a selector port into a candidate.
	Inlet Direction = iota + 1
	// Outlet edges flow from a candidate into a selector port.
	Outlet
)

// String returns "inlet" or "outlet".
func (d Direction) String() string {
	switch d {
	case Inlet:
		return "inlet"
	case Outlet:
		return "outlet"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MarshalText encodes the direction as "inlet" or "outlet".
func (d Direction) MarshalText() ([]byte, error) {
	if d != Inlet && d != Outlet {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes "inlet" or "outlet".
func (d *Direction) UnmarshalText(b []byte) error {
	dir, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = dir
	return nil
}

// ParseDirection parses "inlet" or "outlet".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "inlet":
		return Inlet, nil
	case "outlet":
		return Outlet, nil
	}
	return 0, fmt.Errorf("invalid direction %q: want inlet or outlet", s)
}

// ConnectorName returns the external connector name for port index k,
// e.g. "inlet_1" or "outlet_2".
func (d Direction) ConnectorName(k int) string {
	return fmt.Sprintf("%s_%d", d, k)
}

// EdgeID is the structural identity of a connection edge.
type EdgeID struct {
	Branch    int       `json:"branch"`
	Direction Direction `json:"direction"`
	Port      int       `json:"port"`
}

// Name returns the diagnostic name of the edge. It is derived from the
// identity and is never used to look an edge up.
func (id EdgeID) Name() string {
	if id.Direction == Outlet {
		return fmt.Sprintf("unit_to_outlet_arc_%d", id.Branch)
	}
	return fmt.Sprintf("inlet_to_unit_arc_%d", id.Branch)
}

// String implements fmt.Stringer.
func (id EdgeID) String() string {
	return fmt.Sprintf("branch %d %s %d", id.Branch, id.Direction, id.Port)
}

// PointRef references a connection point of a unit in "unit.point" form.
type PointRef struct {
	Unit  string `json:"unit"`
	Point string `json:"point"`
}

// ParsePointRef parses "unit.point". The unit part may not contain dots; the
// point part is everything after the first dot.
func ParsePointRef(s string) (PointRef, error) {
	unit, point, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || unit == "" || point == "" {
		return PointRef{}, fmt.Errorf("invalid point reference %q: want \"unit.point\"", s)
	}
	return PointRef{Unit: unit, Point: point}, nil
}

// String returns the "unit.point" form.
func (r PointRef) String() string {
	return r.Unit + "." + r.Point
}
