package util

import "strings"

// StripCodeFences unwraps a ```markdown (or ```md/```json/```text/bare ```)
// block the model sometimes puts around its whole answer. Any other fence
// language is real content and is returned unchanged.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 6 || !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	switch strings.ToLower(strings.TrimSpace(body[:nl])) {
	case "", "markdown", "md", "json", "text":
		return strings.TrimSpace(body[nl+1:])
	default:
		return s
	}
}

// Truncate cuts s to max runes and appends "…".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
