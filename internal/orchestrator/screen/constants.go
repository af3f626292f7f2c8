// Package screen runs the capture loop and decides which frames are new enough
// to extract text from.
package screen

import "time"

// Screen processing constants
const (
	// Hamming distance a frame must exceed to count as changed
	DefaultHashThreshold = 2

	// Default capture period
	DefaultInterval = time.Second
)
