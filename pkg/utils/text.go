// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Truncate returns s cut to at most maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimRightFunc(string(runes[:maxLen]), isSpace) + "..."
}

// SplitList splits a delimited list on '|' or ',' and drops blank items.
// "Action|Sci-Fi" and "Action, Sci-Fi" both yield [Action Sci-Fi].
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}
