package selector

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

// PortMap maps a 1-based port index to the ordered per-branch connection
// points for that port.
//
// A single-element list wires that point into the branch whose index equals
// the port index. A list of length N wires element i into branch i.
type PortMap map[int][]*state.Point

// Indices returns the port indices in ascending order.
func (m PortMap) Indices() []int {
	idx := make([]int, 0, len(m))
	for k := range m {
		idx = append(idx, k)
	}
	slices.Sort(idx)
	return idx
}

// Config is the selector configuration surface.
type Config struct {
	// Units are the candidates, one per branch, in branch order
	// (unit_disjunct).
	Units []unit.Candidate

	// Parent currently owns the candidates; nil when they are unowned.
	Parent unit.Owner

	// Source derives the inlet port states (unit_source).
	Source unit.Template

	// Sink derives the outlet port states (unit_sink).
	Sink unit.Template

	// Inlets is the inlet fan-out mapping (unit_disjunct_inlet).
	Inlets PortMap

	// Outlets is the outlet fan-in mapping (unit_disjunct_outlet).
	Outlets PortMap

	// ConstructPorts exposes named connectors; nil means true.
	ConstructPorts *bool

	// MixedState is accepted for compatibility and not consulted.
	MixedState *state.Block

	// Dynamic and HasHoldup must be false.
	Dynamic   bool
	HasHoldup bool
}

// Bool returns a pointer to b, for ConstructPorts.
func Bool(b bool) *bool {
	return &b
}

func (c *Config) constructPorts() bool {
	return c.ConstructPorts == nil || *c.ConstructPorts
}

// Option configures a UnitSelector.
type Option func(*UnitSelector)

// WithExpander replaces the default EqualityExpander.
func WithExpander(e Expander) Option {
	return func(s *UnitSelector) {
		s.expander = e
	}
}

// WithRecorder sets a sink for build records and initialization events.
func WithRecorder(r Recorder) Option {
	return func(s *UnitSelector) {
		s.recorder = r
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *UnitSelector) {
		s.logger = l
	}
}

// WithClock sets the logical clock used to stamp records.
func WithClock(c *Clock) Option {
	return func(s *UnitSelector) {
		s.clock = c
	}
}

// WithRunIDGenerator sets the generator for build and run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *UnitSelector) {
		s.runIDs = g
	}
}

// edgePlan is one edge to be created, resolved before any mutation.
type edgePlan struct {
	id    ir.EdgeID
	point *state.Point
}

// plan is the validated wiring of a configuration.
type plan struct {
	inlets      []edgePlan
	outlets     []edgePlan
	inletPorts  int
	outletPorts int
}

// validate checks the whole configuration and resolves the wiring.
// It never mutates anything.
func (c *Config) validate() (*plan, error) {
	if c.Dynamic {
		return nil, configError(ErrCodeUnsupportedFlag, "dynamic must be false: the selector is steady-state only")
	}
	if c.HasHoldup {
		return nil, configError(ErrCodeUnsupportedFlag, "has_holdup must be false: the selector has no holdup")
	}

	n := len(c.Units)
	if n == 0 {
		return nil, configError(ErrCodeNoCandidates, "unit_disjunct must list at least one candidate")
	}
	seen := make(map[string]int, n)
	for i, u := range c.Units {
		if u == nil {
			return nil, &Error{Kind: KindConfiguration, Code: ErrCodeInvalidCandidate,
				Message: "nil candidate", Branch: i + 1}
		}
		if prev, dup := seen[u.Name()]; dup {
			return nil, &Error{Kind: KindConfiguration, Code: ErrCodeInvalidCandidate,
				Message: fmt.Sprintf("duplicate candidate name %q (also branch %d)", u.Name(), prev), Branch: i + 1}
		}
		seen[u.Name()] = i + 1
	}

	if err := checkTemplate("unit_source", c.Source); err != nil {
		return nil, err
	}
	if err := checkTemplate("unit_sink", c.Sink); err != nil {
		return nil, err
	}

	inlets, err := planDirection(ir.Inlet, c.Inlets, c.Units)
	if err != nil {
		return nil, err
	}
	outlets, err := planDirection(ir.Outlet, c.Outlets, c.Units)
	if err != nil {
		return nil, err
	}

	return &plan{
		inlets:      inlets,
		outlets:     outlets,
		inletPorts:  len(c.Inlets),
		outletPorts: len(c.Outlets),
	}, nil
}

func checkTemplate(option string, t unit.Template) error {
	if t == nil {
		return configError(ErrCodeMissingTemplate, "%s is required", option)
	}
	if t.PropertyPackage() == nil {
		return configError(ErrCodeMissingTemplate, "%s has no property package to build port states from", option)
	}
	return nil
}

// planDirection resolves one fan-out/fan-in mapping into edge plans.
func planDirection(dir ir.Direction, m PortMap, units []unit.Candidate) ([]edgePlan, error) {
	n := len(units)
	indices := m.Indices()
	for i, k := range indices {
		if k != i+1 {
			return nil, &Error{Kind: KindConfiguration, Code: ErrCodePortIndex,
				Message:   fmt.Sprintf("port indices must be contiguous starting at 1, got %v", indices),
				Direction: dir, Port: k}
		}
	}

	var plans []edgePlan
	add := func(branch, port int, p *state.Point) error {
		if p == nil {
			return &Error{Kind: KindConfiguration, Code: ErrCodeForeignPoint,
				Message: "nil connection point", Branch: branch, Direction: dir, Port: port}
		}
		cand := units[branch-1]
		points := cand.Inlets()
		if dir == ir.Outlet {
			points = cand.Outlets()
		}
		if !unit.HasPoint(points, p) {
			return &Error{Kind: KindConfiguration, Code: ErrCodeForeignPoint,
				Message: fmt.Sprintf("%s is not an %s of candidate %s", p, dir, cand.Name()),
				Branch:  branch, Direction: dir, Port: port}
		}
		plans = append(plans, edgePlan{
			id:    ir.EdgeID{Branch: branch, Direction: dir, Port: port},
			point: p,
		})
		return nil
	}

	for _, k := range indices {
		list := m[k]
		switch {
		case len(list) == 1:
			if k > n {
				return nil, &Error{Kind: KindConfiguration, Code: ErrCodeBranchOutOfRange,
					Message:   fmt.Sprintf("single-element mapping targets branch %d but there are only %d branches", k, n),
					Direction: dir, Port: k}
			}
			if err := add(k, k, list[0]); err != nil {
				return nil, err
			}
		case len(list) == n:
			for i, p := range list {
				if err := add(i+1, k, p); err != nil {
					return nil, err
				}
			}
		default:
			return nil, &Error{Kind: KindConfiguration, Code: ErrCodeAmbiguousMapping,
				Message:   fmt.Sprintf("mapping lists %d connection points; want 1 or %d", len(list), n),
				Direction: dir, Port: k}
		}
	}

	covered := make([]bool, n+1)
	for _, p := range plans {
		covered[p.id.Branch] = true
	}
	for b := 1; b <= n; b++ {
		if !covered[b] {
			return nil, &Error{Kind: KindConfiguration, Code: ErrCodeUnmappedBranch,
				Message: fmt.Sprintf("no %s mapping reaches candidate %s", dir, units[b-1].Name()),
				Branch:  b}
		}
	}
	return plans, nil
}
