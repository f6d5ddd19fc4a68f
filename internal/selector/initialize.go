package selector

import (
	"context"
	"fmt"

	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

// Initialize seeds and initializes each candidate in branch order:
//
//  1. copy every inlet edge source into its destination (port order)
//  2. call the candidate's Initialize with opts unchanged
//  3. locate the outlet edges
//
// The first failing candidate stops the walk; later branches are not
// touched. Port states are never written. Outlet state is not propagated
// back to the ports.
func (s *UnitSelector) Initialize(ctx context.Context, opts unit.Options) error {
	switch s.phase {
	case phaseUnbuilt:
		return configError(ErrCodeNotBuilt, "selector %s must be built before initialization", s.name)
	case phaseFailed:
		return burntToast(ErrCodeUnusable, "selector %s failed earlier and cannot be initialized", s.name)
	}

	s.runID = s.runIDs.Generate()
	log := s.logger.With("selector", s.name, "run_id", s.runID)
	log.Info("initialization started", "branches", len(s.branches))

	for _, b := range s.branches {
		if err := s.initBranch(ctx, b, opts); err != nil {
			s.phase = phaseFailed
			log.Error("initialization failed", "branch", b.index, "error", err)
			return err
		}
	}

	log.Info("initialization complete")
	return nil
}

func (s *UnitSelector) initBranch(ctx context.Context, b *Branch, opts unit.Options) error {
	c := b.unit
	if c == nil {
		return &Error{Kind: KindBurntToast, Code: ErrCodeMissingEdge,
			Message: "branch holds no candidate", Branch: b.index}
	}
	if len(b.inlets) == 0 {
		return &Error{Kind: KindBurntToast, Code: ErrCodeMissingEdge,
			Message: fmt.Sprintf("no inlet edge for %s", c.Name()), Branch: b.index}
	}
	if len(b.outlets) == 0 {
		return &Error{Kind: KindBurntToast, Code: ErrCodeMissingEdge,
			Message: fmt.Sprintf("no outlet edge for %s", c.Name()), Branch: b.index}
	}

	for _, e := range b.inlets {
		n, err := state.Propagate(e.Source, e.Dest)
		if err != nil {
			s.record(ctx, InitEvent{Branch: b.index, Unit: c.Name(), Step: StepPropagate,
				Edge: e.Name(), Error: err.Error()})
			return &Error{Kind: KindBurntToast, Code: ErrCodePropagation,
				Message: fmt.Sprintf("cannot seed %s from %s", e.Dest, e.Source),
				Branch:  b.index, Direction: e.ID.Direction, Port: e.ID.Port, Err: err}
		}
		s.logger.Debug("inlet seeded",
			"selector", s.name, "edge", e.Name(), "source", e.Source.String(),
			"dest", e.Dest.String(), "copied", n)
		s.record(ctx, InitEvent{Branch: b.index, Unit: c.Name(), Step: StepPropagate,
			Edge: e.Name(), Copied: n})
	}

	if err := c.Initialize(ctx, opts); err != nil {
		s.record(ctx, InitEvent{Branch: b.index, Unit: c.Name(), Step: StepInitialize,
			Error: err.Error()})
		return &Error{Kind: KindInitialization, Code: ErrCodeUnitInit,
			Message: fmt.Sprintf("candidate %s failed to initialize", c.Name()),
			Branch:  b.index, Err: err}
	}
	s.record(ctx, InitEvent{Branch: b.index, Unit: c.Name(), Step: StepInitialize})

	for _, e := range b.outlets {
		s.logger.Debug("outlet located",
			"selector", s.name, "edge", e.Name(), "source", e.Source.String(),
			"dest", e.Dest.String())
		s.record(ctx, InitEvent{Branch: b.index, Unit: c.Name(), Step: StepOutlet,
			Edge: e.Name()})
	}
	return nil
}
