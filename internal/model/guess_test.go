package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/state"
)

const guessDoc = `{
  // feed conditions
  "inlet_1": {"flow_mol": 100, "temperature": 350},
  /* product estimate */
  "outlet_1": {"pressure": 90000,},
}`

func TestParseGuesses(t *testing.T) {
	g, err := ParseGuesses([]byte(guessDoc))
	require.NoError(t, err)
	assert.Equal(t, 100.0, g["inlet_1"]["flow_mol"])
	assert.Equal(t, 90000.0, g["outlet_1"]["pressure"])

	_, err = ParseGuesses([]byte(`{"inlet_1": "hot"}`))
	assert.Error(t, err)
}

func TestLoadGuesses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guess.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(guessDoc), 0o644))

	g, err := LoadGuesses(path)
	require.NoError(t, err)
	assert.Len(t, g, 2)

	_, err = LoadGuesses(filepath.Join(t.TempDir(), "missing.jsonc"))
	assert.Error(t, err)
}

func TestSeedGuesses(t *testing.T) {
	m, err := Assemble(testSpec())
	require.NoError(t, err)
	sel := newTestSelector(t, m)

	g, err := ParseGuesses([]byte(guessDoc))
	require.NoError(t, err)
	n, err := SeedGuesses(sel, g)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	in, _ := sel.Connector("inlet_1")
	v, _ := in.State().Value(state.VarFlowMol)
	assert.Equal(t, 100.0, v)
	out, _ := sel.Connector("outlet_1")
	v, _ = out.State().Value(state.VarPressure)
	assert.Equal(t, 90000.0, v)
}

func TestSeedGuessesSkipsFixed(t *testing.T) {
	m, err := Assemble(testSpec())
	require.NoError(t, err)
	sel := newTestSelector(t, m)
	in, _ := sel.Connector("inlet_1")
	require.NoError(t, in.State().Fix(state.VarFlowMol, 5))

	n, err := SeedGuesses(sel, Guesses{"inlet_1": {state.VarFlowMol: 100}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	v, _ := in.State().Value(state.VarFlowMol)
	assert.Equal(t, 5.0, v)
}

func TestSeedGuessesUnknownNames(t *testing.T) {
	m, err := Assemble(testSpec())
	require.NoError(t, err)
	sel := newTestSelector(t, m)

	_, err = SeedGuesses(sel, Guesses{"inlet_7": {state.VarFlowMol: 1}})
	assert.True(t, selector.IsConfigurationError(err))
	assert.Equal(t, selector.ErrCodeGuess, selector.ErrorCode(err))

	// Nothing is written when any entry is bad.
	_, err = SeedGuesses(sel, Guesses{
		"inlet_1":  {state.VarFlowMol: 42},
		"outlet_1": {"enthalpy": 1},
	})
	assert.True(t, selector.IsConfigurationError(err))
	in, _ := sel.Connector("inlet_1")
	v, _ := in.State().Value(state.VarFlowMol)
	assert.Equal(t, 1.0, v)
}

func TestSeedGuessesHiddenPorts(t *testing.T) {
	spec := testSpec()
	spec.Selector.ConstructPorts = false
	m, err := Assemble(spec)
	require.NoError(t, err)
	sel := newTestSelector(t, m)

	n, err := SeedGuesses(sel, Guesses{"inlet_1": {state.VarTemperature: 310}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
