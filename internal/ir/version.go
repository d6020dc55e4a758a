package ir

// Version constants for the record schema and the liquidator.
const (
	// RecordVersion is the wire record schema version.
	RecordVersion = "1"

	// Version is the liquidator version.
	Version = "0.1.0"
)
