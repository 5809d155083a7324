package document

import (
	"strings"
	"unicode/utf8"
)

// MaxChars is the default number of characters of a text that take part in scoring.
const MaxChars = 2000

// Text is a resume or job description prepared for scoring (immutable value object).
type Text struct {
	value     string
	chars     int
	truncated bool
}

// NewText caps raw at maxChars code points. maxChars <= 0 disables the cap.
func NewText(raw string, maxChars int) Text {
	value, truncated := Truncate(raw, maxChars)
	return Text{
		value:     value,
		chars:     utf8.RuneCountInString(raw),
		truncated: truncated,
	}
}

// String returns the capped text.
func (t Text) String() string { return t.value }

// Chars returns the length of the original input in characters.
func (t Text) Chars() int { return t.chars }

// Truncated reports whether the cap removed anything.
func (t Text) Truncated() bool { return t.truncated }

// IsBlank reports whether the capped text has no non-whitespace characters.
func (t Text) IsBlank() bool { return IsBlank(t.value) }

// IsBlank reports whether s has no non-whitespace characters.
func IsBlank(s string) bool { return strings.TrimSpace(s) == "" }

// Truncate returns the first maxChars code points of s.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(s) <= maxChars {
		// len in bytes >= rune count, so short strings never need the scan.
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i], true
		}
		n++
	}
	return s, false
}
