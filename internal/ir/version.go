package ir

// Version constants for persisted data and the compiler.
const (
	// SchemaVersion is the token/artifact data schema version.
	SchemaVersion = "1"

	// CompilerVersion is the snc compiler version.
	CompilerVersion = "0.1.0"
)
