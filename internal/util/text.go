package util

import "strings"

// ContainsFold reports whether substr occurs in s, case-insensitively.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsAnyFold returns true if text contains any of the needles,
// case-insensitively.
func ContainsAnyFold(text string, needles []string) bool {
	for _, n := range needles {
		if ContainsFold(text, n) {
			return true
		}
	}
	return false
}
