package ir

// Version constants for the declaration schema and the engine.
const (
	// IRVersion is the declaration schema version.
	IRVersion = "1"

	// EngineVersion is the dispatch engine version.
	EngineVersion = "0.1.0"
)
