package utils

// Truncate shortens s to at most maxLen runes, marking the cut with "...".
// The result including the marker never exceeds maxLen runes.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

const ellipsis = "..."
