package ir

// Version constants for the event envelope and engine.
const (
	// EventVersion is the only envelope version accepted by this release.
	EventVersion = "1.0"

	// EngineVersion is the runledger engine version.
	EngineVersion = "0.1.0"
)
