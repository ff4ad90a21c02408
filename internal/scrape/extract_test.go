package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleHTML = `<html>
<head><title>Release Notes</title><style>p { color: red }</style></head>
<body>
<script>var tracking = true;</script>
<h1>Version 2.0</h1>
<p>Faster parsing.</p>
<h2>Breaking changes</h2>
<p>None this time.</p>
<a href="/changelog">Full changelog</a>
<a href="/download">Download</a>
<table><tr><th>OS</th><th>Arch</th></tr><tr><td>linux</td><td>amd64</td></tr></table>
</body></html>`

func TestExtractText(t *testing.T) {
	text, err := ExtractText(sampleHTML)
	require.NoError(t, err)
	require.Contains(t, text, "Version 2.0")
	require.Contains(t, text, "Faster parsing.")
	require.NotContains(t, text, "tracking")
	require.NotContains(t, text, "color: red")
}

func TestExtractTitle(t *testing.T) {
	require.Equal(t, "Release Notes", ExtractTitle(sampleHTML))
	require.Equal(t, "Untitled Page", ExtractTitle("<html><body>no title</body></html>"))
}

func TestExtractStructured(t *testing.T) {
	content, err := ExtractStructured(sampleHTML)
	require.NoError(t, err)

	require.Equal(t, []string{"Version 2.0", "Breaking changes"}, content.Headings)
	require.Len(t, content.Links, 2)
	require.Equal(t, "Full changelog", content.Links[0].Text)
	require.Equal(t, "/changelog", content.Links[0].Href)

	require.Len(t, content.Tables, 1)
	require.Equal(t, [][]string{{"OS", "Arch"}, {"linux", "amd64"}}, content.Tables[0])
}

func TestExtractStructuredLinkCap(t *testing.T) {
	html := "<html><body>"
	for i := 0; i < 30; i++ {
		html += `<a href="/x">link</a>`
	}
	html += "</body></html>"

	content, err := ExtractStructured(html)
	require.NoError(t, err)
	require.Len(t, content.Links, maxExtractedLinks)
}
