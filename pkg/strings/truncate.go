// Package strings holds string helpers shared by the output and event code.
package strings

import (
	"strings"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate shortens s to at most maxLen runes, replacing the tail with
// Ellipsis. maxLen values below len(Ellipsis)+1 are raised to it.
func Truncate(s string, maxLen int) string {
	if maxLen < len(Ellipsis)+1 {
		maxLen = len(Ellipsis) + 1
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}

// SingleLine collapses all whitespace runs, newlines included, into single
// spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
