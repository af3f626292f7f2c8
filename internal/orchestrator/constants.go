// Package orchestrator wires the capture, extraction, summarization, and
// speech stages into one pipeline.
package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Store event buffers
	TextEventBuffer    = 100
	DialogEventBuffer  = 100
	FailureEventBuffer = 50

	// Shutdown budget for restoring the microphone
	RestoreTimeout = 2 * time.Second

	// Export file directory under the output dir
	ExportDir = "exports"
)
