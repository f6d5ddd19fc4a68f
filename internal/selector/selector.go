package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

type phase int

const (
	phaseUnbuilt phase = iota
	phaseBuilt
	phaseFailed
)

// UnitSelector chooses exactly one of N candidate units inside a flowsheet.
//
// Lifecycle: New, then Build once, then Initialize (may be repeated after a
// success). A failed Build or Initialize leaves the selector unusable.
// UnitSelector is not safe for concurrent use.
type UnitSelector struct {
	name string
	cfg  Config

	expander Expander
	recorder Recorder
	logger   *slog.Logger
	clock    *Clock
	runIDs   RunIDGenerator

	phase       phase
	branches    []*Branch
	disjunction *Disjunction
	inletPorts  []*Port
	outletPorts []*Port
	connectors  map[string]*Port
	equalities  int

	buildID   string
	runID     string
	recordErr error
}

// New creates an unbuilt selector. cfg is copied; the candidates it names
// are only moved by Build.
func New(name string, cfg Config, opts ...Option) *UnitSelector {
	s := &UnitSelector{
		name:     name,
		cfg:      cfg,
		expander: EqualityExpander{},
		logger:   slog.Default(),
		clock:    NewClock(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the selector name. Port points are owned by this name.
func (s *UnitSelector) Name() string { return s.name }

// OwnerName implements the naming half of unit.Owner for diagnostics.
func (s *UnitSelector) OwnerName() string { return s.name }

// Built reports whether Build succeeded and nothing has failed since.
func (s *UnitSelector) Built() bool { return s.phase == phaseBuilt }

// BuildID returns the ID assigned by the last successful Build.
func (s *UnitSelector) BuildID() string { return s.buildID }

// RunID returns the ID of the most recent Initialize call.
func (s *UnitSelector) RunID() string { return s.runID }

// Build validates the configuration and constructs branches, the
// disjunction, ports and edges, then expands the edges.
//
// All configuration checks run before anything is mutated. If a later step
// fails, candidates already moved are returned to cfg.Parent.
func (s *UnitSelector) Build(ctx context.Context) error {
	switch s.phase {
	case phaseBuilt:
		return configError(ErrCodeAlreadyBuilt, "selector %s is already built", s.name)
	case phaseFailed:
		return burntToast(ErrCodeUnusable, "selector %s failed earlier and cannot be built", s.name)
	}

	p, err := s.cfg.validate()
	if err != nil {
		return s.fail(err)
	}
	if s.cfg.MixedState != nil {
		s.logger.Debug("mixed_state_block is accepted but not consulted",
			"selector", s.name, "block", s.cfg.MixedState.Name())
	}

	// Ports come before branches so a package error fails with every
	// candidate still on its parent.
	inlets, err := s.buildPorts(ir.Inlet, p.inletPorts, s.cfg.Source)
	if err != nil {
		return s.fail(err)
	}
	outlets, err := s.buildPorts(ir.Outlet, p.outletPorts, s.cfg.Sink)
	if err != nil {
		return s.fail(err)
	}

	branches := make([]*Branch, len(s.cfg.Units))
	for i := range branches {
		branches[i] = newBranch(i + 1)
	}
	if err := s.relocate(branches); err != nil {
		return s.fail(err)
	}

	for _, ep := range p.inlets {
		b := branches[ep.id.Branch-1]
		b.inlets = append(b.inlets, newEdge(ep.id, inlets[ep.id.Port-1], ep.point))
	}
	for _, ep := range p.outlets {
		b := branches[ep.id.Branch-1]
		b.outlets = append(b.outlets, newEdge(ep.id, outlets[ep.id.Port-1], ep.point))
	}

	var all []*Edge
	for _, b := range branches {
		all = append(all, b.Edges()...)
	}
	expanded, err := s.expander.Expand(all)
	if err != nil {
		s.restore(branches)
		return s.fail(&Error{Kind: KindConfiguration, Code: ErrCodeExpansion,
			Message: "edge expansion failed", Err: err})
	}
	for _, e := range all {
		e.Equalities = expanded[e.ID]
	}

	s.branches = branches
	s.disjunction = newDisjunction(branches)
	s.inletPorts = inlets
	s.outletPorts = outlets
	s.connectors = make(map[string]*Port)
	if s.cfg.constructPorts() {
		for _, port := range append(append([]*Port{}, inlets...), outlets...) {
			port.Exposed = true
			s.connectors[port.Name()] = port
		}
	}
	s.equalities = equalityCount(expanded)
	s.phase = phaseBuilt
	s.buildID = s.runIDs.Generate()

	s.logger.Info("selector built",
		"selector", s.name,
		"build_id", s.buildID,
		"branches", len(branches),
		"inlet_ports", len(inlets),
		"outlet_ports", len(outlets),
		"edges", len(all),
		"equalities", s.equalities)

	if s.recorder != nil {
		fp, err := s.Fingerprint()
		if err != nil {
			s.noteRecordErr(err)
			return nil
		}
		if err := s.recorder.RecordBuild(ctx, s.buildRecord(s.clock.Next(), fp)); err != nil {
			s.noteRecordErr(err)
		}
	}
	return nil
}

func (s *UnitSelector) fail(err error) error {
	s.phase = phaseFailed
	s.logger.Error("selector build failed", "selector", s.name, "error", err)
	return err
}

// buildPorts creates count ports in one direction from tmpl's property
// package.
func (s *UnitSelector) buildPorts(dir ir.Direction, count int, tmpl unit.Template) ([]*Port, error) {
	doc := "Selector Unit Inlet"
	if dir == ir.Outlet {
		doc = "Selector Unit Outlet"
	}
	pkg := tmpl.PropertyPackage()
	args := portArgs(tmpl.PropertyPackageArgs())

	ports := make([]*Port, count)
	for k := 1; k <= count; k++ {
		connector := dir.ConnectorName(k)
		block, err := pkg.BuildStateBlock(fmt.Sprintf("%s.%s_state", s.name, connector), doc, args)
		if err != nil {
			e := &Error{Kind: KindConfiguration, Code: ErrCodePortState,
				Message:   fmt.Sprintf("cannot build %s state with package %s", connector, pkg.Name()),
				Direction: dir, Port: k, Err: err}
			var nse *state.NotSupportedError
			if errors.As(err, &nse) {
				e.Kind = KindPropertyNotSupported
				e.Code = ErrCodePropertyUnsupported
			}
			return nil, e
		}
		ports[k-1] = &Port{
			Direction: dir,
			Index:     k,
			Point:     state.NewPoint(s.name, connector, block),
		}
	}
	return ports, nil
}

// relocate moves each candidate from its parent into its branch. On failure
// every candidate moved so far is returned.
func (s *UnitSelector) relocate(branches []*Branch) error {
	for i, c := range s.cfg.Units {
		if err := unit.Transfer(c, s.cfg.Parent, branches[i]); err != nil {
			s.restore(branches[:i])
			return &Error{Kind: KindConfiguration, Code: ErrCodeRelocation,
				Message: fmt.Sprintf("cannot move %s into %s", c.Name(), branches[i].OwnerName()),
				Branch:  i + 1, Err: err}
		}
		s.logger.Debug("candidate relocated",
			"selector", s.name, "unit", c.Name(), "branch", i+1)
	}
	return nil
}

// restore hands candidates back to the parent after a failed build.
func (s *UnitSelector) restore(branches []*Branch) {
	for _, b := range branches {
		c := b.Unit()
		if c == nil {
			continue
		}
		var err error
		if s.cfg.Parent != nil {
			err = unit.Transfer(c, b, s.cfg.Parent)
		} else {
			_, err = b.Detach(c.Name())
		}
		if err != nil {
			s.logger.Error("candidate restore failed",
				"selector", s.name, "unit", c.Name(), "error", err)
		}
	}
}

// Branches returns the branches in index order. Empty before Build.
func (s *UnitSelector) Branches() []*Branch {
	out := make([]*Branch, len(s.branches))
	copy(out, s.branches)
	return out
}

// Disjunction returns the exactly-one constraint, or nil before Build.
func (s *UnitSelector) Disjunction() *Disjunction {
	return s.disjunction
}

// Ports returns the ports in one direction in index order.
func (s *UnitSelector) Ports(dir ir.Direction) []*Port {
	src := s.inletPorts
	if dir == ir.Outlet {
		src = s.outletPorts
	}
	out := make([]*Port, len(src))
	copy(out, src)
	return out
}

// Port returns the port with the given direction and 1-based index.
// Ports exist whether or not they are exposed as connectors.
func (s *UnitSelector) Port(dir ir.Direction, k int) (*Port, bool) {
	ports := s.inletPorts
	if dir == ir.Outlet {
		ports = s.outletPorts
	}
	if k < 1 || k > len(ports) {
		return nil, false
	}
	return ports[k-1], true
}

// Connector returns an exposed port by connector name, e.g. "inlet_1".
func (s *UnitSelector) Connector(name string) (*Port, bool) {
	p, ok := s.connectors[name]
	return p, ok
}

// Connectors returns exposed connector names, inlets first, each in index
// order.
func (s *UnitSelector) Connectors() []string {
	var names []string
	for _, ports := range [][]*Port{s.inletPorts, s.outletPorts} {
		for _, p := range ports {
			if p.Exposed {
				names = append(names, p.Name())
			}
		}
	}
	return names
}

// Edges returns every edge in branch order, inlet edges before outlet edges
// within a branch.
func (s *UnitSelector) Edges() []*Edge {
	var out []*Edge
	for _, b := range s.branches {
		out = append(out, b.Edges()...)
	}
	return out
}

// Equalities returns the number of expanded equality constraints.
func (s *UnitSelector) Equalities() int {
	return s.equalities
}

// Fingerprint returns a content hash of the built structure: branches with
// their unit names and edge identities, port counts and connector names.
func (s *UnitSelector) Fingerprint() (string, error) {
	if s.phase != phaseBuilt {
		return "", configError(ErrCodeNotBuilt, "selector %s is not built", s.name)
	}
	branches := make([]any, len(s.branches))
	for i, b := range s.branches {
		edges := make([]any, 0, len(b.inlets)+len(b.outlets))
		for _, e := range b.Edges() {
			edges = append(edges, map[string]any{
				"direction": e.ID.Direction.String(),
				"port":      e.ID.Port,
				"source":    e.Source.String(),
				"dest":      e.Dest.String(),
			})
		}
		branches[i] = map[string]any{
			"index": b.index,
			"unit":  b.unit.Name(),
			"edges": edges,
		}
	}
	connectors := s.Connectors()
	if connectors == nil {
		connectors = []string{}
	}
	return ir.StructureHash(map[string]any{
		"selector":     s.name,
		"branches":     branches,
		"inlet_ports":  len(s.inletPorts),
		"outlet_ports": len(s.outletPorts),
		"connectors":   connectors,
	})
}

// StreamRow is one line of the port stream table.
type StreamRow struct {
	Port      string      `json:"port"`
	Direction string      `json:"direction"`
	Index     int         `json:"index"`
	Exposed   bool        `json:"exposed"`
	Vars      []state.Var `json:"vars"`
}

// Report returns the stream table: one row per port, inlets first.
func (s *UnitSelector) Report() []StreamRow {
	var rows []StreamRow
	for _, ports := range [][]*Port{s.inletPorts, s.outletPorts} {
		for _, p := range ports {
			rows = append(rows, StreamRow{
				Port:      p.Name(),
				Direction: p.Direction.String(),
				Index:     p.Index,
				Exposed:   p.Exposed,
				Vars:      blockVars(p.State()),
			})
		}
	}
	return rows
}
