package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage_TitleAndAnchors(t *testing.T) {
	body := []byte(`<html><head><title>  Acme
		Widgets </title></head><body>
		<a href="/about">About   Us</a>
		<a href="mailto:info@acme.test">Email</a>
		<a name="anchor-without-href">skip me</a>
		<a href="/products">Products</a>
	</body></html>`)

	page, err := ParsePage(body)
	require.NoError(t, err)

	assert.Equal(t, "Acme Widgets", page.Title, "title whitespace should be collapsed")
	require.Len(t, page.Anchors, 3, "only anchors with an href attribute count")
	assert.Equal(t, Anchor{Href: "/about", Text: "About Us"}, page.Anchors[0])
	assert.Equal(t, Anchor{Href: "mailto:info@acme.test", Text: "Email"}, page.Anchors[1])
	assert.Equal(t, Anchor{Href: "/products", Text: "Products"}, page.Anchors[2])
}

func TestParsePage_MalformedMarkupTolerated(t *testing.T) {
	body := []byte(`<html><body><div><a href="/a">unclosed<p><a href="/b">second`)

	page, err := ParsePage(body)
	require.NoError(t, err, "malformed markup should parse, not error")
	require.Len(t, page.Anchors, 2)
	assert.Equal(t, "/a", page.Anchors[0].Href)
	assert.Equal(t, "/b", page.Anchors[1].Href)
	assert.Empty(t, page.Title)
}

func TestParsePage_NoAnchors(t *testing.T) {
	page, err := ParsePage([]byte(`<html><head><title>Empty</title></head><body><p>text</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Empty", page.Title)
	assert.Empty(t, page.Anchors)
}
