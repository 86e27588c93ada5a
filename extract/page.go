package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Compiled selectors for the listing markup. Compiling once up front keeps
// per-page extraction allocation-light and catches selector typos at startup.
var (
	selClosedDate = cascadia.MustCompile("abbr.endtime")
	selListItems  = cascadia.MustCompile("ul li")
	selAnyElement = cascadia.MustCompile("body *")
)

// Page is a queryable snapshot of one rendered listing. It wraps the
// post-render HTML so extraction never touches the live browser tab; the tab
// is released by the fetcher as soon as the snapshot is taken.
type Page struct {
	title string
	doc   *goquery.Document
}

// NewPage parses the rendered HTML into a queryable Page.
func NewPage(title, rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &Page{title: title, doc: doc}, nil
}

// Title returns the document title as reported by the browser.
func (p *Page) Title() string {
	return p.title
}

// TextContaining returns the visible text of the innermost element whose
// content contains the marker, mirroring a browser text locator: script,
// style, and noscript content never matches, so a JSON blob mentioning the
// marker cannot shadow the on-page element. The second return is false when
// no element on the page contains the marker.
func (p *Page) TextContaining(marker string) (string, bool) {
	best := ""
	found := false
	p.doc.FindMatcher(selAnyElement).Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "script", "style", "noscript":
			return
		}
		text := visibleText(s)
		if !strings.Contains(text, marker) {
			return
		}
		// Prefer the smallest enclosing element over its ancestors.
		if !found || len(text) < len(best) {
			best = text
			found = true
		}
	})
	return best, found
}

// visibleText concatenates the selection's text nodes, skipping script,
// style, and noscript subtrees.
func visibleText(s *goquery.Selection) string {
	var buf strings.Builder
	for _, n := range s.Nodes {
		appendVisibleText(n, &buf)
	}
	return buf.String()
}

func appendVisibleText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendVisibleText(c, buf)
	}
}

// ClosedDateText returns the raw closed-date timestamp text, or false when
// the page carries no closed-date element.
func (p *Page) ClosedDateText() (string, bool) {
	sel := p.doc.FindMatcher(selClosedDate)
	if sel.Length() == 0 {
		return "", false
	}
	return sel.First().Text(), true
}

// ListItemTexts returns the text content of every list item on the page, in
// document order. The detail fields live in unlabeled bullet lists, so the
// extractor scans all of them.
func (p *Page) ListItemTexts() []string {
	var texts []string
	p.doc.FindMatcher(selListItems).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts
}
