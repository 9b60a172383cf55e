package platform

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdRenderer     goldmark.Markdown
	postSanitizer  *bluemonday.Policy
	plainSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	postSanitizer = bluemonday.UGCPolicy()
	plainSanitizer = bluemonday.StrictPolicy()
}

// renderPostBody converts markdown post content to sanitized HTML.
// Returns empty string for empty input.
func renderPostBody(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return postSanitizer.Sanitize(src)
	}

	return postSanitizer.Sanitize(buf.String())
}

// plainMessage strips all markup from a direct message and returns plain text.
func plainMessage(src string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(plainSanitizer.Sanitize(src)))
}
