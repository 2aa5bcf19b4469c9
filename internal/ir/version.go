package ir

// Version constants for the IR schema and engine.
const (
	// IRVersion is the version stamped on every compiled document.
	IRVersion = "1.0.0"

	// EngineVersion is the chord engine version.
	EngineVersion = "0.1.0"
)
