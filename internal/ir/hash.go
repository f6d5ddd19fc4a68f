package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStructure = "unitsel/structure/v1"
	DomainSpec      = "unitsel/spec/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StructureHash fingerprints a built selector structure given as a canonical
// map (see selector.UnitSelector.Fingerprint).
func StructureHash(structure map[string]any) (string, error) {
	canonical, err := MarshalCanonical(structure)
	if err != nil {
		return "", fmt.Errorf("StructureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStructure, canonical), nil
}

// SpecHash fingerprints a compiled flowsheet spec.
func SpecHash(spec *FlowsheetSpec) (string, error) {
	canonical, err := MarshalCanonical(spec.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

func (s *FlowsheetSpec) canonicalMap() map[string]any {
	units := make([]any, len(s.Units))
	for i, u := range s.Units {
		units[i] = map[string]any{
			"name":    u.Name,
			"kind":    u.Kind,
			"inlets":  u.Inlets,
			"outlets": u.Outlets,
			"fail":    u.Fail,
		}
	}
	return map[string]any{
		"name": s.Name,
		"property_package": map[string]any{
			"name":       s.PropertyPackage.Name,
			"components": s.PropertyPackage.Components,
			"phases":     s.PropertyPackage.Phases,
		},
		"units": units,
		"selector": map[string]any{
			"unit_disjunct":        s.Selector.Units,
			"unit_source":          s.Selector.Source,
			"unit_sink":            s.Selector.Sink,
			"unit_disjunct_inlet":  portMapCanonical(s.Selector.Inlets),
			"unit_disjunct_outlet": portMapCanonical(s.Selector.Outlets),
			"construct_ports":      s.Selector.ConstructPorts,
			"mixed_state_block":    s.Selector.MixedState,
			"dynamic":              s.Selector.Dynamic,
			"has_holdup":           s.Selector.HasHoldup,
		},
	}
}

func portMapCanonical(m map[int][]PointRef) map[string]any {
	out := make(map[string]any, len(m))
	for k, refs := range m {
		items := make([]string, len(refs))
		for i, r := range refs {
			items[i] = r.String()
		}
		out[fmt.Sprintf("%d", k)] = items
	}
	return out
}
