package store

import (
	"context"
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

var _ selector.Recorder = (*Store)(nil)

// RecordBuild stores a build with its branches and edges in one
// transaction. Uses ON CONFLICT DO NOTHING for idempotency: recording the
// same build ID twice keeps the first record.
func (s *Store) RecordBuild(ctx context.Context, rec selector.BuildRecord) (err error) {
	connectors, err := marshalConnectors(rec.Connectors)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record build: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO builds
		(id, selector, fingerprint, connectors, seq, selector_version, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.BuildID,
		rec.Selector,
		rec.Fingerprint,
		connectors,
		rec.Seq,
		ir.SelectorVersion,
		ir.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already recorded.
		return tx.Commit()
	}

	for _, b := range rec.Branches {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO build_branches (build_id, branch, unit)
			VALUES (?, ?, ?)
		`, rec.BuildID, b.Index, b.Unit); err != nil {
			return fmt.Errorf("record build: branch %d: %w", b.Index, err)
		}
		for _, e := range b.Edges {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO build_edges
				(build_id, branch, direction, port, name, source, dest, equalities)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				rec.BuildID,
				e.ID.Branch,
				e.ID.Direction.String(),
				e.ID.Port,
				e.Name,
				e.Source,
				e.Dest,
				e.Equalities,
			); err != nil {
				return fmt.Errorf("record build: edge %s: %w", e.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("record build: commit: %w", err)
	}
	return nil
}

// RecordInitEvent appends one initialization step.
// Uses ON CONFLICT DO NOTHING for idempotency on (run_id, seq).
//
// Note: The build referenced by BuildID must exist (foreign key constraint).
func (s *Store) RecordInitEvent(ctx context.Context, ev selector.InitEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO init_events
		(run_id, build_id, seq, branch, unit, step, edge, copied, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ev.RunID,
		ev.BuildID,
		ev.Seq,
		ev.Branch,
		ev.Unit,
		string(ev.Step),
		ev.Edge,
		ev.Copied,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("record init event: %w", err)
	}
	return nil
}
