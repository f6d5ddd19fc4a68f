package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/model"
	"github.com/roach88/unitsel/internal/store"
)

func TestBuildText(t *testing.T) {
	useSequentialIDs(t)

	stdout, _, err := execute(t, "build", specsDir(), "--flowsheet", "fan_out")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Flowsheet: fan_out")
	assert.Contains(t, stdout, "Build:     cli-0001 (seq 1)")
	assert.Contains(t, stdout, "Connectors: inlet_1, outlet_1")
	assert.Contains(t, stdout, "Branch 1: hx1")
	assert.Contains(t, stdout, "Branch 2: hx2")
	assert.Contains(t, stdout, "inlet_to_unit_arc_2")
	assert.Contains(t, stdout, "unit_to_outlet_arc_1")
	assert.Contains(t, stdout, "✓ Built 2 branch(es)")
}

func TestBuildJSON(t *testing.T) {
	useSequentialIDs(t)

	stdout, _, err := execute(t, "build", specsDir(), "-f", "one_to_one", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   BuildResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)

	rec := resp.Data.Build
	assert.Equal(t, "one_to_one", resp.Data.Flowsheet)
	assert.Equal(t, "cli-0001", rec.BuildID)
	assert.Empty(t, rec.Connectors, "construct_ports=false exposes nothing")
	assert.Len(t, rec.Fingerprint, 64)
	assert.Len(t, resp.Data.SpecHash, 64)
	assert.NotEqual(t, rec.Fingerprint, resp.Data.SpecHash)
	require.Len(t, rec.Branches, 2)
	for i, b := range rec.Branches {
		require.Len(t, b.Edges, 2)
		assert.Equal(t, i+1, b.Edges[0].ID.Branch)
		assert.Equal(t, ir.Inlet, b.Edges[0].ID.Direction)
		assert.Equal(t, i+1, b.Edges[0].ID.Port, "one port per branch")
	}
	assert.Positive(t, resp.Data.Equalities)
}

func TestBuildFingerprintStable(t *testing.T) {
	fingerprint := func() string {
		stdout, _, err := execute(t, "build", specsDir(), "-f", "fan_out", "--format", "json")
		require.NoError(t, err)
		var resp struct {
			Data BuildResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
		return resp.Data.Build.Fingerprint
	}

	first := fingerprint()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, fingerprint(), "build IDs differ but the structure hash does not")
}

func TestBuildSingleFlowsheetNeedsNoFlag(t *testing.T) {
	stdout, _, err := execute(t, "build", writeSpecs(t, singleFanOut))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Flowsheet: feed_split")
}

func TestBuildAmbiguousFlowsheet(t *testing.T) {
	stdout, _, err := execute(t, "build", specsDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeAmbiguous)
	assert.Contains(t, stdout, "--flowsheet")
}

func TestBuildUnknownFlowsheet(t *testing.T) {
	stdout, _, err := execute(t, "build", specsDir(), "-f", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, `flowsheet "missing" not found`)
}

func TestBuildRejectsInvalidFlowsheet(t *testing.T) {
	stdout, _, err := execute(t, "build", specsDir(), "-f", "dynamic")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "E219")
}

func TestBuildRecordsToDatabase(t *testing.T) {
	useSequentialIDs(t)
	dbPath := filepath.Join(t.TempDir(), "unitsel.db")

	_, _, err := execute(t, "build", specsDir(), "-f", "fan_out", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	rec, err := st.ReadBuild(t.Context(), "cli-0001")
	require.NoError(t, err)
	assert.Equal(t, model.SelectorName, rec.Selector)
	assert.Equal(t, []string{"inlet_1", "outlet_1"}, rec.Connectors)
}
