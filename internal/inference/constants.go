package inference

import "time"

// Request shaping shared by both providers
const (
	Temperature     = 0.5
	MaxOutputTokens = 500

	// Response fields
	FieldText   = "text"
	FieldDialog = "dialog"

	// Cap on error bodies read from a failed response
	maxErrorBody = 4 << 10

	// Speech stream latency hint, 0 (none) to 4 (max)
	StreamLatency = 2

	// Dial and header timeout for remote APIs; body reads follow the caller's context
	dialTimeout = 10 * time.Second
)
