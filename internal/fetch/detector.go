package fetch

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// Detector decides whether a fetched body is worth extracting from
// directly or whether the page needs a real browser. The source site
// serves a near-empty JS shell to plain HTTP clients, so the signals are
// simple: enough markup, no bot-wall keywords, and at least one profile
// marker selector present.
type Detector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewDetector builds a Detector with the configured thresholds.
func NewDetector(minBytes int, selectors, keywords []string) *Detector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowered,
	}
}

// NewProfileDetector returns a Detector tuned for profile pages.
func NewProfileDetector() *Detector {
	return NewDetector(
		2048,
		[]string{`img[src*="profile_images"]`, `div[data-testid="UserName"]`},
		[]string{"javascript is not available", "enable javascript", "something went wrong"},
	)
}

// NeedsBrowser reports whether the body lacks usable profile markup.
func (d *Detector) NeedsBrowser(body []byte) bool {
	if d == nil {
		return true
	}
	switch {
	case d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes:
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowered := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// missingSelectors promotes when none of the marker selectors match.
// Unlike a generic JS detector, a profile page only needs one marker to
// be extractable.
func (d *Detector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return false
		}
	}
	return true
}
