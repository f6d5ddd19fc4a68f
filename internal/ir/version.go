package ir

// Version constants for the spec schema and the selector.
const (
	// SchemaVersion is the flowsheet spec schema version.
	SchemaVersion = "1"

	// SelectorVersion is the unitsel selector version.
	SelectorVersion = "0.1.0"
)
