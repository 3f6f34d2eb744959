package ir

// Version constants for the definition schema and engine.
const (
	// SchemaVersion is the app definition schema version.
	SchemaVersion = "1"

	// EngineVersion is the appsim engine version.
	EngineVersion = "0.1.0"
)
