package deduplication

import (
	"regexp"
	"strings"
)

// MaxSlugLength bounds the length of a canonical identifier.
const MaxSlugLength = 90

var (
	disallowedRegex = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	hyphenRunRegex  = regexp.MustCompile(`-+`)
)

// Canonicalize projects a free-text title onto a page identifier.
//
// The result is lowercase, contains only [a-z0-9-], has no leading,
// trailing or repeated hyphens and is at most MaxSlugLength bytes long.
// Titles with no usable characters yield "".
func Canonicalize(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = disallowedRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, "-")
	s = hyphenRunRegex.ReplaceAllString(s, "-")
	if len(s) > MaxSlugLength {
		// Everything left is ASCII, so byte truncation is safe.
		s = s[:MaxSlugLength]
	}
	return strings.Trim(s, "-")
}

// tokens returns the set of non-empty hyphen-delimited words of an identifier.
func tokens(id string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(id, "-") {
		if part == "" {
			continue
		}
		set[part] = struct{}{}
	}
	return set
}
