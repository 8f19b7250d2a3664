package ir

// Version constants for the wire format and engine.
const (
	// WireVersion identifies the patch wire format produced by this module.
	WireVersion = "1"

	// EngineVersion is the SDDE engine version.
	EngineVersion = "0.1.0"
)

// MaxFields is the number of distinct field indexes an engine can track.
const MaxFields = 256
