package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/tidwall/jsonc"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

// Guesses maps a port connector name ("inlet_1") to variable values.
type Guesses map[string]map[string]float64

// ParseGuesses parses a JSONC guess document:
//
//	{
//	  // feed conditions
//	  "inlet_1": {"flow_mol": 100, "temperature": 350},
//	}
func ParseGuesses(data []byte) (Guesses, error) {
	var g Guesses
	if err := json.Unmarshal(jsonc.ToJSON(data), &g); err != nil {
		return nil, fmt.Errorf("failed to parse guesses: %w", err)
	}
	return g, nil
}

// LoadGuesses reads and parses a JSONC guess file.
func LoadGuesses(path string) (Guesses, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guesses: %w", err)
	}
	return ParseGuesses(data)
}

// SeedGuesses writes guesses into the port states of a built selector.
// Ports are found whether or not they are exposed as connectors. Fixed
// variables are left alone.
//
// An unknown port or variable is a ConfigurationError and nothing is
// written.
func SeedGuesses(sel *selector.UnitSelector, g Guesses) (int, error) {
	ports := make(map[string]*selector.Port)
	for _, dir := range []ir.Direction{ir.Inlet, ir.Outlet} {
		for _, p := range sel.Ports(dir) {
			ports[p.Name()] = p
		}
	}

	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	slices.Sort(names)

	// Check everything before writing anything.
	for _, name := range names {
		p, ok := ports[name]
		if !ok {
			return 0, guessError("unknown port %q", name)
		}
		for v := range g[name] {
			if !p.State().Layout().Has(v) {
				return 0, guessError("port %s has no variable %q", name, v)
			}
		}
	}

	n := 0
	for _, name := range names {
		block := ports[name].State()
		for v, val := range g[name] {
			if block.Fixed(v) {
				continue
			}
			if err := block.Set(v, val); err != nil {
				return n, guessError("port %s: %v", name, err)
			}
			n++
		}
	}
	return n, nil
}

func guessError(format string, args ...any) error {
	return &selector.Error{
		Kind:    selector.KindConfiguration,
		Code:    selector.ErrCodeGuess,
		Message: fmt.Sprintf(format, args...),
	}
}
