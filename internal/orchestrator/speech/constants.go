// Package speech plays dialog lines one at a time with the microphone ducked.
package speech

import "time"

const (
	DefaultTimeout = 60 * time.Second

	// Bound on restoring the microphone after playback
	releaseTimeout = 2 * time.Second
)
