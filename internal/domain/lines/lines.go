// Package lines provides the line sequence narrated by the player.
package lines

import "strings"

// Sequence is an ordered list of non-blank, trimmed lines.
type Sequence []string

// Split breaks raw text on line breaks and drops lines that are blank after trimming.
func Split(raw string) Sequence {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	seq := make(Sequence, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seq = append(seq, line)
	}
	return seq
}

// Len returns the number of lines.
func (s Sequence) Len() int {
	return len(s)
}

// IsEmpty returns true if there is nothing to narrate.
func (s Sequence) IsEmpty() bool {
	return len(s) == 0
}

// At returns the line at index i.
// The second result is false when i is out of range.
func (s Sequence) At(i int) (string, bool) {
	if i < 0 || i >= len(s) {
		return "", false
	}
	return s[i], true
}

// HasNext reports whether a line follows index i.
func (s Sequence) HasNext(i int) bool {
	return i+1 < len(s)
}

// Clone returns a copy that does not share the backing array.
func (s Sequence) Clone() Sequence {
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}
