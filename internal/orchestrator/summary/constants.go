package summary

import "time"

const (
	// Captured text shorter than this keeps accumulating before a call is made
	DefaultMinChars = 50

	DefaultTimeout = 30 * time.Second
)
