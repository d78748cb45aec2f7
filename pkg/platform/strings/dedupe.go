// Package strings provides string manipulation utilities for request parsing.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims, lowercases and removes duplicates and empty
// strings from a slice. First occurrence wins, so order is preserved.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  0xAB ", "0xcd", "0xab"})
//	// Returns: []string{"0xab", "0xcd"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.ToLower(strings.TrimSpace(v))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits comma-separated query values, accepting both the repeated
// form (?w=a&w=b) and the joined form (?w=a,b). Empty items are dropped.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
