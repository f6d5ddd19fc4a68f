package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/unitsel/internal/ir"
)

// marshalConnectors converts connector names to canonical JSON TEXT.
func marshalConnectors(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal connectors: %w", err)
	}
	return string(data), nil
}

// unmarshalConnectors parses connector names. Returns an empty slice, not
// nil, for an empty list.
func unmarshalConnectors(data string) ([]string, error) {
	names := []string{}
	if data == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal connectors: %w", err)
	}
	return names, nil
}
