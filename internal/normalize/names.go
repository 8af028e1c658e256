package normalize

import (
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`\s+`)

// Description collapses whitespace and trims the input, falling back to
// fallback when the result is empty. Used to derive charge-line
// descriptions from free-text clinical fields.
func Description(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return multiSpace.ReplaceAllString(s, " ")
}

// FullName joins first and last name with a single space, collapsing
// internal whitespace in either part.
func FullName(first, last string) string {
	first = multiSpace.ReplaceAllString(strings.TrimSpace(first), " ")
	last = multiSpace.ReplaceAllString(strings.TrimSpace(last), " ")
	return strings.TrimSpace(first + " " + last)
}
