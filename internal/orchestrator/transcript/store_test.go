package transcript

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func textEntry(lines ...string) TextEntry {
	return TextEntry{Lines: lines, Timestamp: time.Now(), FrameID: uuid.New()}
}

func TestTextStoreAppend(t *testing.T) {
	s := NewTextStore(10)
	e := textEntry("Hello", "World")
	s.Append(e)

	entries := s.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].FrameID != e.FrameID || entries[0].Text() != "Hello\nWorld" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s := NewTextStore(10)
	s.Append(textEntry("a"))

	entries := s.All()
	entries[0] = textEntry("mutated")

	if got := s.All()[0].Lines[0]; got != "a" {
		t.Errorf("store entry = %q, want %q", got, "a")
	}
}

func TestRecentContext(t *testing.T) {
	s := NewTextStore(10)
	s.Append(textEntry("one"))
	s.Append(textEntry("two", "three"))
	s.Append(textEntry("four"))

	tests := []struct {
		n        int
		expected []string
	}{
		{0, nil},
		{1, []string{"four"}},
		{2, []string{"two", "three", "four"}},
		{10, []string{"one", "two", "three", "four"}},
	}
	for _, tt := range tests {
		got := s.RecentContext(tt.n)
		if len(got) != len(tt.expected) {
			t.Errorf("RecentContext(%d) = %v, want %v", tt.n, got, tt.expected)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("RecentContext(%d)[%d] = %q, want %q", tt.n, i, got[i], tt.expected[i])
			}
		}
	}
}

func TestSinceCursor(t *testing.T) {
	s := NewTextStore(10)
	s.Append(textEntry("old"))
	cursor := s.Len()
	s.Append(textEntry("new1"))
	s.Append(textEntry("new2"))

	if got := JoinLines(s.Since(cursor)); got != "new1\nnew2" {
		t.Errorf("JoinLines(Since(%d)) = %q, want %q", cursor, got, "new1\nnew2")
	}
	if got := len(s.Since(99)); got != 0 {
		t.Errorf("Since past end = %d entries, want 0", got)
	}
	if got := len(s.Since(-1)); got != 3 {
		t.Errorf("Since(-1) = %d entries, want 3", got)
	}
}

func TestLast(t *testing.T) {
	s := NewTextStore(10)
	if _, ok := s.Last(); ok {
		t.Error("empty store should have no last entry")
	}
	s.Append(textEntry("a"))
	s.Append(textEntry("b"))
	if last, _ := s.Last(); last.Lines[0] != "b" {
		t.Errorf("Last() = %v, want b", last.Lines)
	}
}

func TestSinkMirrorsAppends(t *testing.T) {
	s := NewDialogLog(10)
	var mirrored []string
	s.SetSink(func(e DialogEntry) error {
		mirrored = append(mirrored, e.Text())
		return nil
	})

	s.Append(DialogEntry{Lines: []string{"I'm reading the logs."}})
	if len(mirrored) != 1 || mirrored[0] != "I'm reading the logs." {
		t.Errorf("mirrored = %v", mirrored)
	}
}

func TestSinkFailureKeepsEntry(t *testing.T) {
	s := NewDialogLog(10)
	s.SetSink(func(DialogEntry) error { return errors.New("disk full") })

	s.Append(DialogEntry{Lines: []string{"still here"}})
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after sink failure", s.Len())
	}
}

func TestDialogLines(t *testing.T) {
	d := NewDialogLog(10)
	d.Append(DialogEntry{Lines: []string{"first"}})
	d.Append(DialogEntry{Lines: []string{"second"}})

	got := d.Lines()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Lines() = %v, want [first second]", got)
	}
}

func TestEmit(t *testing.T) {
	s := NewTextStore(10)
	go s.Append(textEntry("test"))

	select {
	case e := <-s.Events():
		if e.Lines[0] != "test" {
			t.Errorf("expected 'test', got %q", e.Lines[0])
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestEmitNonBlocking(t *testing.T) {
	s := NewTextStore(1) // Small buffer

	// Fill the buffer
	s.Emit(textEntry("1"))

	// This should not block
	done := make(chan struct{})
	go func() {
		s.Append(textEntry("2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Append blocked on a full event buffer")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
