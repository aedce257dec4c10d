package auth

import "strings"

// MaskUsername hides the middle of a username for "forgot username" replies.
// Up to 3 characters keep the first one, 4 or 5 keep the first two, longer
// names keep the first three and the last two. Length is preserved.
func MaskUsername(username string) string {
	r := []rune(username)
	n := len(r)

	var lead, trail int
	switch {
	case n == 0:
		return ""
	case n <= 3:
		lead = 1
	case n <= 5:
		lead = 2
	default:
		lead, trail = 3, 2
	}

	var b strings.Builder
	b.WriteString(string(r[:lead]))
	b.WriteString(strings.Repeat("*", n-lead-trail))
	b.WriteString(string(r[n-trail:]))
	return b.String()
}
