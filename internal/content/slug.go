// Package content derives the computed fields of posts and taxonomy terms:
// slugs, read time and excerpts.
package content

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	multiDash    = regexp.MustCompile(`-{2,}`)
)

// TermSlug converts a category or tag name into its slug.
func TermSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// PostSlug builds the slug of a new post: the title slug followed by the
// creation time in base36, which keeps identical titles distinct.
func PostSlug(title string, now time.Time) string {
	suffix := strconv.FormatInt(now.UnixMilli(), 36)
	base := TermSlug(title)
	if base == "" {
		base = "post"
	}
	return base + "-" + suffix
}
