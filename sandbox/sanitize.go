package sandbox

import (
	"regexp"
	"strings"
)

var (
	repeatedUnderscores = regexp.MustCompile(`_+`)
	repeatedSlashes     = regexp.MustCompile(`/+`)
)

// SanitizePath makes a generated path safe to pass through a shell: it drops
// parentheses, brackets, braces, and quotes (common in framework route
// directories), replaces whitespace with underscores, and collapses the
// repeated separators left behind.
func SanitizePath(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch r {
		case '(', ')', '[', ']', '{', '}', '\'', '"', '`':
			// dropped
		case ' ', '\t':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	cleaned := repeatedUnderscores.ReplaceAllString(b.String(), "_")
	cleaned = repeatedSlashes.ReplaceAllString(cleaned, "/")
	return cleaned
}
