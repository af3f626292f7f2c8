// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection rate limiting for inbound WebSocket messages
	RateLimitMessages = 5           // Max messages per window
	RateLimitWindow   = time.Second // Sliding window duration

	// Budget for one broadcast write to a slow client
	BroadcastWriteTimeout = 2 * time.Second

	// Largest accepted request body (region JSON)
	MaxRequestBody = 4 << 10
)
