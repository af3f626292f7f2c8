package transcript

import (
	"strings"
	"unicode"
)

// minContainmentLen keeps short fragments like "ok" from matching every line.
const minContainmentLen = 20

// Normalize lowercases s, drops punctuation other than '.', and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similar reports whether two normalized lines are near-duplicates: one
// contains the other, or their word sets overlap by more than threshold
// (Jaccard). A threshold <= 0 disables the check.
func Similar(a, b string, threshold float64) bool {
	if threshold <= 0 || a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= minContainmentLen && strings.Contains(longer, shorter) {
		return true
	}
	return jaccard(strings.Fields(a), strings.Fields(b)) > threshold
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, w := range a {
		set[w] |= 1
	}
	for _, w := range b {
		set[w] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	overlap := 0
	for _, v := range set {
		if v == 3 {
			overlap++
		}
	}
	return float64(overlap) / float64(len(set))
}

// Seen is a set of normalized lines.
type Seen map[string]struct{}

// NewSeen builds a set from raw lines.
func NewSeen(lines []string) Seen {
	s := make(Seen, len(lines))
	for _, l := range lines {
		s.Add(l)
	}
	return s
}

// Add records the normalized form of line.
func (s Seen) Add(line string) {
	s[seenKey(line)] = struct{}{}
}

// Has reports whether line normalizes to a recorded entry.
func (s Seen) Has(line string) bool {
	_, ok := s[seenKey(line)]
	return ok
}

// seenKey is the normalized line, or the trimmed raw line when normalizing
// leaves nothing (emoji or punctuation only).
func seenKey(line string) string {
	if norm := Normalize(line); norm != "" {
		return norm
	}
	return strings.TrimSpace(line)
}
