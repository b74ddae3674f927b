package crawler

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Anchor is one <a href> reference found in a page.
type Anchor struct {
	Href string
	Text string
}

// Page is the parsed markup of one fetched document: its title and every
// anchor reference, in document order.
type Page struct {
	Title   string
	Anchors []Anchor
}

// ParsePage parses an HTML document. goquery only inspects markup: scripts
// are never executed and sub-resources are never loaded. Malformed embedded
// markup is tolerated by the parser; an error is returned only when the
// document cannot be read at all.
func ParsePage(body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &Page{
		Title: collapseWhitespace(doc.Find("title").First().Text()),
	}
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		page.Anchors = append(page.Anchors, Anchor{
			Href: href,
			Text: collapseWhitespace(s.Text()),
		})
	})
	return page, nil
}

// collapseWhitespace trims and folds runs of whitespace so anchor texts
// compare equal regardless of source formatting.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
