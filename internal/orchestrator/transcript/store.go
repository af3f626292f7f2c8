// Package transcript holds the append-only histories of extracted screen text
// and spoken dialog.
package transcript

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TextEntry is one batch of new lines extracted from a frame.
type TextEntry struct {
	Lines     []string  `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
	FrameID   uuid.UUID `json:"frame_id"`
}

// Text joins the entry's lines.
func (e TextEntry) Text() string { return strings.Join(e.Lines, "\n") }

// DialogEntry is one spoken line, kept as a line slice so both logs share a shape.
type DialogEntry struct {
	Lines     []string  `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
}

// Text joins the entry's lines.
func (e DialogEntry) Text() string { return strings.Join(e.Lines, " ") }

// Sink mirrors appended entries somewhere durable.
type Sink[E any] func(E) error

// Log is an append-only history with a single writer and many readers.
// Entries are never mutated or removed; a fresh Log is an empty history.
type Log[E any] struct {
	name     string
	mu       sync.RWMutex
	entries  []E
	eventsCh chan E
	sink     Sink[E]
}

func newLog[E any](name string, eventBuffer int) *Log[E] {
	return &Log[E]{
		name:     name,
		eventsCh: make(chan E, eventBuffer),
	}
}

// SetSink installs the journal mirror. Must be called before the first Append.
func (l *Log[E]) SetSink(sink Sink[E]) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

// Append adds entry, mirrors it to the sink, and emits it as an event.
// A sink failure is logged and does not undo the append.
func (l *Log[E]) Append(entry E) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		if err := sink(entry); err != nil {
			slog.Warn("journal write failed", "log", l.name, "error", err)
		}
	}
	l.Emit(entry)
}

// All returns a copy of the full history in append order.
func (l *Log[E]) All() []E {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]E, len(l.entries))
	copy(result, l.entries)
	return result
}

// Len returns the number of entries. It doubles as a cursor for Since.
func (l *Log[E]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Since returns the entries appended at or after cursor.
func (l *Log[E]) Since(cursor int) []E {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cursor = max(0, min(cursor, len(l.entries)))
	result := make([]E, len(l.entries)-cursor)
	copy(result, l.entries[cursor:])
	return result
}

// Recent returns the last n entries in chronological order.
func (l *Log[E]) Recent(n int) []E {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n = max(0, min(n, len(l.entries)))
	result := make([]E, n)
	copy(result, l.entries[len(l.entries)-n:])
	return result
}

// Last returns the newest entry.
func (l *Log[E]) Last() (E, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		var zero E
		return zero, false
	}
	return l.entries[len(l.entries)-1], true
}

// Events returns the channel of appended entries.
func (l *Log[E]) Events() <-chan E {
	return l.eventsCh
}

// Emit sends an event (non-blocking).
func (l *Log[E]) Emit(entry E) {
	select {
	case l.eventsCh <- entry:
	default:
	}
}

// TextStore is the history of extracted screen text.
type TextStore struct {
	*Log[TextEntry]
}

// NewTextStore creates an empty text history.
func NewTextStore(eventBuffer int) *TextStore {
	return &TextStore{Log: newLog[TextEntry]("text", eventBuffer)}
}

// RecentContext returns the lines of the last n entries, oldest first.
func (s *TextStore) RecentContext(n int) []string {
	var lines []string
	for _, e := range s.Recent(n) {
		lines = append(lines, e.Lines...)
	}
	return lines
}

// JoinLines flattens entries into newline-separated text.
func JoinLines(entries []TextEntry) string {
	var lines []string
	for _, e := range entries {
		lines = append(lines, e.Lines...)
	}
	return strings.Join(lines, "\n")
}

// DialogLog is the history of spoken dialog.
type DialogLog struct {
	*Log[DialogEntry]
}

// NewDialogLog creates an empty dialog history.
func NewDialogLog(eventBuffer int) *DialogLog {
	return &DialogLog{Log: newLog[DialogEntry]("dialog", eventBuffer)}
}

// RecentContext returns the lines of the last n entries, oldest first.
func (d *DialogLog) RecentContext(n int) []string {
	var lines []string
	for _, e := range d.Recent(n) {
		lines = append(lines, e.Lines...)
	}
	return lines
}

// Lines returns every dialog line spoken so far.
func (d *DialogLog) Lines() []string {
	return d.RecentContext(d.Len())
}
