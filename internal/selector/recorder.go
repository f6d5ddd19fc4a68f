package selector

import (
	"context"

	"github.com/roach88/unitsel/internal/ir"
)

// Recorder receives a build record after a successful Build and one event per
// initialization step. Implementations must not retain the slices they are
// given beyond the call.
type Recorder interface {
	RecordBuild(ctx context.Context, rec BuildRecord) error
	RecordInitEvent(ctx context.Context, ev InitEvent) error
}

// BuildRecord describes a built selector.
type BuildRecord struct {
	BuildID     string         `json:"build_id"`
	Seq         int64          `json:"seq"`
	Selector    string         `json:"selector"`
	Fingerprint string         `json:"fingerprint"`
	Connectors  []string       `json:"connectors"`
	Branches    []BranchRecord `json:"branches"`
}

// BranchRecord describes one built branch.
type BranchRecord struct {
	Index int          `json:"index"`
	Unit  string       `json:"unit"`
	Edges []EdgeRecord `json:"edges"`
}

// EdgeRecord describes one wired edge.
type EdgeRecord struct {
	ID         ir.EdgeID `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Dest       string    `json:"dest"`
	Equalities int       `json:"equalities"`
}

// InitStep names a step of initialization.
type InitStep string

const (
	// StepPropagate is one inlet edge seeding its candidate inlet.
	StepPropagate InitStep = "propagate"

	// StepInitialize is the candidate's own Initialize call.
	StepInitialize InitStep = "initialize"

	// StepOutlet is an outlet edge located after initialization.
	StepOutlet InitStep = "outlet"
)

// InitEvent is one recorded initialization step.
type InitEvent struct {
	RunID   string   `json:"run_id"`
	BuildID string   `json:"build_id"`
	Seq     int64    `json:"seq"`
	Branch  int      `json:"branch"`
	Unit    string   `json:"unit"`
	Step    InitStep `json:"step"`

	// Edge is the edge name for propagate and outlet steps.
	Edge string `json:"edge,omitempty"`

	// Copied is the number of variables copied by a propagate step.
	Copied int `json:"copied,omitempty"`

	// Error is set when the step failed.
	Error string `json:"error,omitempty"`
}

// buildRecord snapshots the built structure.
func (s *UnitSelector) buildRecord(seq int64, fingerprint string) BuildRecord {
	rec := BuildRecord{
		BuildID:     s.buildID,
		Seq:         seq,
		Selector:    s.name,
		Fingerprint: fingerprint,
		Connectors:  s.Connectors(),
	}
	for _, b := range s.branches {
		br := BranchRecord{Index: b.index, Unit: b.unit.Name()}
		for _, e := range b.Edges() {
			br.Edges = append(br.Edges, EdgeRecord{
				ID:         e.ID,
				Name:       e.Name(),
				Source:     e.Source.String(),
				Dest:       e.Dest.String(),
				Equalities: len(e.Equalities),
			})
		}
		rec.Branches = append(rec.Branches, br)
	}
	return rec
}

// record forwards ev to the recorder. Recorder failures never change the
// outcome of Initialize; the first one is kept for RecordErr.
func (s *UnitSelector) record(ctx context.Context, ev InitEvent) {
	if s.recorder == nil {
		return
	}
	ev.RunID = s.runID
	ev.BuildID = s.buildID
	ev.Seq = s.clock.Next()
	if err := s.recorder.RecordInitEvent(ctx, ev); err != nil {
		s.noteRecordErr(err)
	}
}

func (s *UnitSelector) noteRecordErr(err error) {
	s.logger.Error("recorder failed", "selector", s.name, "error", err)
	if s.recordErr == nil {
		s.recordErr = err
	}
}

// RecordErr returns the first error reported by the recorder, if any.
func (s *UnitSelector) RecordErr() error {
	return s.recordErr
}
