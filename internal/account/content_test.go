package account

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeExternalContent_AllowPassesThrough(t *testing.T) {
	a := &Account{ExternalContentPolicy: ContentAllow}
	html := `<p>hi</p><img src="https://tracker.example/pixel.gif">`
	out, stripped := a.SanitizeExternalContent(html)
	require.Equal(t, html, out)
	require.False(t, stripped)
}

func TestSanitizeExternalContent_BlockStripsImages(t *testing.T) {
	a := &Account{ExternalContentPolicy: ContentBlock}
	html := `<p>hi</p><img src="https://tracker.example/pixel.gif">`
	out, stripped := a.SanitizeExternalContent(html)
	require.True(t, stripped)
	require.NotContains(t, out, "img")
	require.Contains(t, out, "<p>hi</p>")
}

func TestSanitizeExternalContent_AskReportsButStillSanitizes(t *testing.T) {
	a := &Account{ExternalContentPolicy: ContentAsk}
	html := `<p>hi</p><img src="https://tracker.example/pixel.gif">`
	out, stripped := a.SanitizeExternalContent(html)
	require.True(t, stripped, "ask still reports that remote content was present")
	require.NotContains(t, out, "img")
}

func TestSanitizeExternalContent_NoRemoteContentIsNotReportedAsStripped(t *testing.T) {
	a := &Account{ExternalContentPolicy: ContentBlock}
	html := `<p>plain text, no remote content</p>`
	out, stripped := a.SanitizeExternalContent(html)
	require.False(t, stripped)
	require.Equal(t, html, out)
}
