package answer

import "strings"

// Normalize canonicalizes free text for equality comparison: trims the ends,
// lowercases, and collapses internal whitespace runs to a single space.
// Every comparison and storage key in the game engine goes through this;
// raw strings must never be compared directly.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
