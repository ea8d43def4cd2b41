package core

import (
	"strings"
	"unicode"
)

// NormalizeCode removes all whitespace from a course code and uppercases it.
// The normalized code is the unique comparison key for courses.
func NormalizeCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Lookup returns a map from normalized code to course name.
// When a snapshot holds the same normalized code twice, the first entry wins.
func (s Snapshot) Lookup() map[string]string {
	m := make(map[string]string, len(s))
	for _, c := range s {
		code := NormalizeCode(c.Code)
		if _, ok := m[code]; !ok {
			m[code] = c.Name
		}
	}
	return m
}
