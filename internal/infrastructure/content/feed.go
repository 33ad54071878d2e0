package content

import (
	"strings"

	"github.com/mmcdole/gofeed"
)

// feedExtractor is shared between requests; gofeed parsers are not, so each
// call builds its own.
type feedExtractor struct{}

func newFeedExtractor() *feedExtractor {
	return &feedExtractor{}
}

func looksLikeFeed(s string) bool {
	head := strings.ToLower(s)
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<rss") ||
		strings.Contains(head, "<feed") ||
		strings.Contains(head, "<rdf:rdf") ||
		(strings.HasPrefix(head, "{") && strings.Contains(head, "jsonfeed.org"))
}

// extract renders every feed item as its title followed by its description,
// with HTML in descriptions reduced to text.
func (f *feedExtractor) extract(raw string) (string, bool) {
	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil || len(feed.Items) == 0 {
		return "", false
	}

	blocks := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		body := item.Description
		if body == "" {
			body = item.Content
		}
		if strings.Contains(body, "<") {
			if text := extractHTMLText(body); text != "" {
				body = text
			}
		}

		block := strings.TrimSpace(strings.TrimSpace(item.Title) + "\n" + strings.TrimSpace(body))
		if block != "" {
			blocks = append(blocks, block)
		}
	}

	if len(blocks) == 0 {
		return "", false
	}

	return strings.Join(blocks, "\n\n"), true
}
