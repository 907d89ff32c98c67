package content

import (
	"bytes"
	stdhtml "html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	// WordsPerMinute is the reading speed used for ReadTime.
	WordsPerMinute = 200
	// ExcerptLength is the number of characters kept by an auto excerpt.
	ExcerptLength = 150
	// MaxExcerptLength bounds stored excerpts.
	MaxExcerptLength = 500
)

var (
	htmlTags = regexp.MustCompile(`<[^>]*>`)

	// Raw HTML is passed through so posts written in HTML and in Markdown
	// both reduce to plain text once tags are stripped.
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
)

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ReadTime returns the estimated reading time in minutes, never less than 1.
func ReadTime(body string) int {
	words := WordCount(body)
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// PlainText renders Markdown (or HTML) content and strips every tag.
func PlainText(body string) string {
	var buf bytes.Buffer
	rendered := body
	if err := md.Convert([]byte(body), &buf); err == nil {
		rendered = buf.String()
	}
	text := htmlTags.ReplaceAllString(rendered, "")
	text = stdhtml.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// Excerpt derives a summary from the post body: the first ExcerptLength
// characters of its plain text, with "..." appended when truncated.
func Excerpt(body string) string {
	text := PlainText(body)
	if utf8.RuneCountInString(text) <= ExcerptLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:ExcerptLength])) + "..."
}

// ClampExcerpt trims a user supplied excerpt to MaxExcerptLength characters.
func ClampExcerpt(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxExcerptLength {
		return s
	}
	return string([]rune(s)[:MaxExcerptLength])
}
