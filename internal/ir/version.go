package ir

// Version constants for the journal schema and engine.
const (
	// IRVersion is the event/action record schema version.
	IRVersion = "1"

	// EngineVersion is the instrumentd engine version.
	EngineVersion = "0.1.0"
)
