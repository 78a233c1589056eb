package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DOM is a parsed, read-only copy of a page's markup used to answer presence
// and text queries without a round trip to the browser per selector.
type DOM struct {
	doc *goquery.Document
}

// ParseDOM parses rendered HTML.
func ParseDOM(html string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &DOM{doc: doc}, nil
}

// Has reports whether selector matches at least one element.
func (d *DOM) Has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

// Count returns the number of elements matching selector.
func (d *DOM) Count(selector string) int {
	return d.doc.Find(selector).Length()
}

// Text returns the cleaned text of the first element matching selector.
func (d *DOM) Text(selector string) (string, bool) {
	sel := d.doc.Find(selector)
	if sel.Length() == 0 {
		return "", false
	}
	return cleanWhitespace(sel.First().Text()), true
}

// cleanWhitespace normalizes whitespace in text.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
