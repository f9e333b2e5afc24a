package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// slugSourceLimit caps how much of a title feeds the slug.
const slugSourceLimit = 100

// Slugify derives a URL-safe slug from a paper title: lowercase ASCII
// letters and digits, runs of anything else collapsed to single hyphens.
// The title is truncated before slugging so very long titles produce
// bounded slugs.
func Slugify(title string) string {
	src := []rune(strings.TrimSpace(title))
	if len(src) > slugSourceLimit {
		src = src[:slugSourceLimit]
	}

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range src {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}

// DisambiguateSlug appends a numeric suffix to a colliding slug so two
// submissions with identical titles receive distinct slugs. The suffix is
// a timestamp supplied by the caller (unix seconds) to keep the function
// deterministic under test.
func DisambiguateSlug(slug string, suffix int64) string {
	return fmt.Sprintf("%s-%d", slug, suffix)
}
