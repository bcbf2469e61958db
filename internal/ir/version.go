package ir

// Version constants for the binary encoding and the engine.
const (
	// EncodingVersion is the version tag written into every canonical envelope.
	// Decoders reject any other value with ErrCodeUnsupportedVersion.
	EncodingVersion = "1"

	// EngineVersion is the dhall engine version.
	EngineVersion = "0.1.0"
)
