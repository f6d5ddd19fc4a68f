package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testBuild returns a two-branch build record with fan-out edges.
func testBuild(id string) selector.BuildRecord {
	rec := selector.BuildRecord{
		BuildID:     id,
		Seq:         1,
		Selector:    "selector",
		Fingerprint: "fp-" + id,
		Connectors:  []string{"inlet_1", "outlet_1"},
	}
	for b := 1; b <= 2; b++ {
		unit := []string{"hx1", "hx2"}[b-1]
		in := ir.EdgeID{Branch: b, Direction: ir.Inlet, Port: 1}
		out := ir.EdgeID{Branch: b, Direction: ir.Outlet, Port: 1}
		rec.Branches = append(rec.Branches, selector.BranchRecord{
			Index: b,
			Unit:  unit,
			Edges: []selector.EdgeRecord{
				{ID: in, Name: in.Name(), Source: "selector.inlet_1", Dest: unit + ".inlet", Equalities: 5},
				{ID: out, Name: out.Name(), Source: unit + ".outlet", Dest: "selector.outlet_1", Equalities: 5},
			},
		})
	}
	return rec
}

func insertTestBuild(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.RecordBuild(context.Background(), testBuild(id)); err != nil {
		t.Fatalf("RecordBuild() failed: %v", err)
	}
}
