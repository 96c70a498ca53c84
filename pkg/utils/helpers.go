package utils

import (
	"strconv"
	"strings"
)

// ParseValue converts a raw CSV cell into int, float64 or string.
func ParseValue(s string) interface{} {
	// Trim whitespace first
	s = strings.TrimSpace(s)

	// try int
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// FoldTag normalizes a free-text tag for comparison: trimmed, lower-cased,
// inner whitespace collapsed to single spaces.
func FoldTag(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
