// Package strings holds string-list helpers shared by configuration loaders.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every value and drops blanks and repeats, keeping the
// first occurrence of each.
//
//	DedupeAndTrim([]string{" audio/wav ", "text/plain", "audio/wav", ""})
//	// []string{"audio/wav", "text/plain"}
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList splits a comma-separated environment value. An empty value
// yields nil.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	out := DedupeAndTrim(strings.Split(s, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
