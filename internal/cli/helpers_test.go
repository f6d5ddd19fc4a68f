package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/testutil"
)

// singleFanOut is a specs file with exactly one flowsheet.
const singleFanOut = `
flowsheet: feed_split: {
	property_package: components: ["H2O"]
	units: {
		hx1: { kind: "passthrough", inlets: ["inlet"], outlets: ["outlet"] }
		hx2: { kind: "passthrough", inlets: ["inlet"], outlets: ["outlet"] }
	}
	selector: {
		unit_disjunct: ["hx1", "hx2"]
		unit_source: "hx1"
		unit_sink: "hx1"
		unit_disjunct_inlet: "1": ["hx1.inlet", "hx2.inlet"]
		unit_disjunct_outlet: "1": ["hx1.outlet", "hx2.outlet"]
	}
}
`

// specsDir is the shared exchanger flowsheets. It defines several
// flowsheets, one of which fails validation.
func specsDir() string {
	return filepath.Join("..", "..", "testdata", "flowsheets")
}

// writeSpecs writes content as the only CUE file of a fresh directory.
func writeSpecs(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flowsheet.cue"), []byte(content), 0644))
	return dir
}

// useSequentialIDs makes every command in the test share one deterministic
// ID sequence: cli-0001, cli-0002, ...
func useSequentialIDs(t *testing.T) {
	t.Helper()
	ids := testutil.NewSequentialIDs("cli")
	prev := newRunIDGenerator
	newRunIDGenerator = func() selector.RunIDGenerator { return ids }
	t.Cleanup(func() { newRunIDGenerator = prev })
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
