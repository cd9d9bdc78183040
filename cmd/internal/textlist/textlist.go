// Package textlist converts between comma-separated form text and string lists.
package textlist

import "strings"

// Separator is used when joining a list back into display text.
const Separator = ", "

// Split splits s on commas, trims each segment and drops empty segments.
// The result is never nil.
func Split(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Join renders items as display text ("a, b, c").
func Join(items []string) string {
	return strings.Join(items, Separator)
}

// Clean applies the Split rules to an already-split list.
func Clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
	}
	return out
}
