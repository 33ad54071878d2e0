package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const minMainContentChars = 100

var mainContentSelectors = []string{
	"article",
	"main",
	".post-content",
	".entry-content",
	".article-body",
	".article-content",
	"#content",
	".content",
}

const noiseSelector = "script, style, noscript, nav, header, footer, aside, .ad, .advertisement"

// extractHTMLText returns the readable text of an HTML document, preferring
// the main content block when one is large enough.
func extractHTMLText(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	doc.Find(noiseSelector).Remove()

	for _, selector := range mainContentSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		text := collapseWhitespace(selection.Text())
		if len(text) > minMainContentChars {
			return text
		}
	}

	// Fragments without <body> are still wrapped in one by the parser.
	return collapseWhitespace(doc.Find("body").Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
