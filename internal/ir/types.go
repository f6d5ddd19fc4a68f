package ir

// FlowsheetSpec is a compiled flowsheet: a property package, the units that
// live in it, and the selector that chooses exactly one of them.
type FlowsheetSpec struct {
	Name            string       `json:"name"`
	PropertyPackage PackageSpec  `json:"property_package"`
	Units           []UnitSpec   `json:"units"`
	Selector        SelectorSpec `json:"selector"`
}

// PackageSpec describes the property package used to build state blocks.
type PackageSpec struct {
	Name       string   `json:"name"`
	Components []string `json:"components"`
	Phases     []string `json:"phases,omitempty"`
}

// UnitSpec describes a candidate unit.
type UnitSpec struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Inlets  []string `json:"inlets"`
	Outlets []string `json:"outlets"`
	Fail    bool     `json:"fail,omitempty"` // force Initialize to fail (diagnostics)
}

// SelectorSpec mirrors the selector configuration surface by unit name.
type SelectorSpec struct {
	Units          []string           `json:"unit_disjunct"`
	Source         string             `json:"unit_source"`
	Sink           string             `json:"unit_sink"`
	Inlets         map[int][]PointRef `json:"unit_disjunct_inlet"`
	Outlets        map[int][]PointRef `json:"unit_disjunct_outlet"`
	ConstructPorts bool               `json:"construct_ports"`
	MixedState     string             `json:"mixed_state_block,omitempty"`
	Dynamic        bool               `json:"dynamic"`
	HasHoldup      bool               `json:"has_holdup"`
}

// ValidUnitKinds defines the unit kinds the model assembler can build.
var ValidUnitKinds = map[string]bool{
	"passthrough": true,
}
