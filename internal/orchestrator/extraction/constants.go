package extraction

import "time"

const (
	DefaultContextEntries = 10
	DefaultTimeout        = 30 * time.Second

	// Returned by the vision model when nothing new is on screen
	NoNewMessages = "NO_NEW_MESSAGES"
)
