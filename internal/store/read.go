package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

// ErrNotFound is returned when a build or run does not exist.
var ErrNotFound = errors.New("not found")

// ReadBuild returns a recorded build with its branches and edges.
// Branches are ordered by index, edges inlet first then by port.
func (s *Store) ReadBuild(ctx context.Context, buildID string) (selector.BuildRecord, error) {
	var rec selector.BuildRecord
	var connectors string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, selector, fingerprint, connectors, seq
		FROM builds
		WHERE id = ?
	`, buildID).Scan(&rec.BuildID, &rec.Selector, &rec.Fingerprint, &connectors, &rec.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("build %s: %w", buildID, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("query build: %w", err)
	}
	if rec.Connectors, err = unmarshalConnectors(connectors); err != nil {
		return rec, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT branch, unit
		FROM build_branches
		WHERE build_id = ?
		ORDER BY branch ASC
	`, buildID)
	if err != nil {
		return rec, fmt.Errorf("query branches: %w", err)
	}
	for rows.Next() {
		var b selector.BranchRecord
		if err := rows.Scan(&b.Index, &b.Unit); err != nil {
			rows.Close()
			return rec, fmt.Errorf("scan branch: %w", err)
		}
		rec.Branches = append(rec.Branches, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("iterate branches: %w", err)
	}

	edges, err := s.readEdges(ctx, buildID)
	if err != nil {
		return rec, err
	}
	for i := range rec.Branches {
		rec.Branches[i].Edges = edges[rec.Branches[i].Index]
	}
	return rec, nil
}

// readEdges returns edges grouped by branch index.
func (s *Store) readEdges(ctx context.Context, buildID string) (map[int][]selector.EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT branch, direction, port, name, source, dest, equalities
		FROM build_edges
		WHERE build_id = ?
		ORDER BY branch ASC, CASE direction WHEN 'inlet' THEN 0 ELSE 1 END ASC, port ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]selector.EdgeRecord)
	for rows.Next() {
		var e selector.EdgeRecord
		var dir string
		if err := rows.Scan(&e.ID.Branch, &dir, &e.ID.Port, &e.Name, &e.Source, &e.Dest, &e.Equalities); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if e.ID.Direction, err = ir.ParseDirection(dir); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out[e.ID.Branch] = append(out[e.ID.Branch], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return out, nil
}

// ReadRun returns the events of one initialization run.
// Results are ordered by seq ASC, id ASC.
//
// Returns ErrNotFound if the run has no events.
func (s *Store) ReadRun(ctx context.Context, runID string) ([]selector.InitEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, build_id, seq, branch, unit, step, edge, copied, error
		FROM init_events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query init events: %w", err)
	}
	defer rows.Close()

	var events []selector.InitEvent
	for rows.Next() {
		var ev selector.InitEvent
		var step string
		if err := rows.Scan(&ev.RunID, &ev.BuildID, &ev.Seq, &ev.Branch, &ev.Unit, &step, &ev.Edge, &ev.Copied, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan init event: %w", err)
		}
		ev.Step = selector.InitStep(step)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate init events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return events, nil
}

// RunSummary is one line of ListRuns.
type RunSummary struct {
	RunID    string `json:"run_id"`
	BuildID  string `json:"build_id"`
	Selector string `json:"selector"`
	Events   int    `json:"events"`
	Failed   bool   `json:"failed"`
	FirstSeq int64  `json:"first_seq"`
}

// ListRuns returns every recorded run ordered by its first seq, then run ID.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.run_id, e.build_id, b.selector, COUNT(*),
		       MAX(CASE WHEN e.error != '' THEN 1 ELSE 0 END), MIN(e.seq)
		FROM init_events e
		JOIN builds b ON b.id = e.build_id
		GROUP BY e.run_id, e.build_id, b.selector
		ORDER BY MIN(e.seq) ASC, e.run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.BuildID, &r.Selector, &r.Events, &r.Failed, &r.FirstSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest seq recorded, or 0 for an empty store.
// A selector clock started with selector.NewClockAt(LastSeq) keeps seq
// increasing across processes.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM builds), 0),
			COALESCE((SELECT MAX(seq) FROM init_events), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}
