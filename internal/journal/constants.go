// Package journal mirrors the text and dialog histories to disk.
package journal

import "time"

// Journal batcher defaults
const (
	DefaultBatcherMaxSize    = 50
	DefaultBatcherFlushDelay = 2 * time.Second
)

// File names under the output directory.
const (
	TextFileName    = "captured_text.txt"
	DialogFileName  = "dialog.txt"
	SummariesDir    = "summaries"
	DatabaseName    = "narrator.db"
	backupStamp     = "20060102_150405"
	lineStamp       = "2006-01-02 15:04:05"
	summaryFileMode = 0o644
)
