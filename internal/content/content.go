package content

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	policy       = bluemonday.UGCPolicy()
	hashtagRegex = regexp.MustCompile(`#(\w+)`)

	markdown = goldmark.New()
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is used for user inputs like post content, comments and bios.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// ExtractHashtags returns the tags referenced in text, in order of
// appearance, without the leading "#". Duplicates are preserved.
func ExtractHashtags(text string) []string {
	matches := hashtagRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, len(matches))
	for i, m := range matches {
		tags[i] = m[1]
	}
	return tags
}

// RenderMarkdown converts markdown to HTML and sanitizes the result.
// Used for the post read surface.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
