package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPostBody_EmptyInput(t *testing.T) {
	assert.Equal(t, "", renderPostBody(""))
}

func TestRenderPostBody_Markdown(t *testing.T) {
	result := renderPostBody("**new** drop: [shop](https://example.com)\n\n~~old~~")
	assert.Contains(t, result, "<strong>new</strong>")
	assert.Contains(t, result, `<a href="https://example.com"`)
	assert.Contains(t, result, "<del>old</del>")
}

func TestRenderPostBody_SanitizesScript(t *testing.T) {
	result := renderPostBody(`hello <script>alert("xss")</script><img src="x" onerror="alert(1)">`)
	assert.NotContains(t, result, "<script>")
	assert.NotContains(t, result, "onerror")
	assert.Contains(t, result, "hello")
}

func TestPlainMessage(t *testing.T) {
	assert.Equal(t, "hi & welcome", plainMessage("<b>hi</b> &amp; welcome"))
	assert.Equal(t, "", plainMessage("<script>alert(1)</script>"))
	assert.Equal(t, "thanks", plainMessage("  thanks  "))
}
