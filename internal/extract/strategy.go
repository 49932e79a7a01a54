// Package extract pulls profile fields out of a rendered DOM snapshot.
//
// Each field has an ordered chain of independent heuristics; the first
// one returning a non-nil value wins. Heuristics never fail: a selector
// that matches nothing is a nil result, not an error. The chains run
// against a goquery document so they are unit-testable on synthetic
// HTML fixtures without a browser.
package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy probes the document for one candidate value. Returns nil when
// the heuristic does not apply to this page.
type Strategy func(doc *goquery.Document) *string

// firstMatch evaluates strategies in priority order and returns the first
// non-nil, non-empty result.
func firstMatch(doc *goquery.Document, chain []Strategy) *string {
	for _, probe := range chain {
		if v := probe(doc); v != nil && strings.TrimSpace(*v) != "" {
			trimmed := strings.TrimSpace(*v)
			return &trimmed
		}
	}
	return nil
}

// Parse builds a goquery document from raw HTML.
func Parse(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// selectorText returns a strategy yielding the trimmed text of the first
// element matching sel.
func selectorText(sel string) Strategy {
	return func(doc *goquery.Document) *string {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			return nil
		}
		text := strings.TrimSpace(node.Text())
		if text == "" {
			return nil
		}
		return &text
	}
}

// selectorAttr returns a strategy yielding the named attribute of the
// first element matching sel.
func selectorAttr(sel, attr string) Strategy {
	return func(doc *goquery.Document) *string {
		val, ok := doc.Find(sel).First().Attr(attr)
		if !ok || strings.TrimSpace(val) == "" {
			return nil
		}
		val = strings.TrimSpace(val)
		return &val
	}
}
