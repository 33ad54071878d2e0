package content

import (
	"log/slog"
	"regexp"
	"strings"
)

// Extractor turns raw request content into the text that goes into the prompt.
type Extractor interface {
	Extract(raw string) string
}

var htmlTagRe = regexp.MustCompile(`(?i)<\s*(html|body|article|main|div|p|span|section|h[1-6]|br|table|ul|ol|li|a)\b`)

type documentExtractor struct {
	feeds *feedExtractor
	log   *slog.Logger
}

// NewExtractor returns an Extractor that recognises RSS/Atom documents and
// HTML, and passes anything else through untouched.
func NewExtractor(log *slog.Logger) Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &documentExtractor{
		feeds: newFeedExtractor(),
		log:   log,
	}
}

func (e *documentExtractor) Extract(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if looksLikeFeed(trimmed) {
		if text, ok := e.feeds.extract(trimmed); ok {
			e.log.Debug("Extracted text from feed document",
				"rawBytes", len(raw),
				"textBytes", len(text))
			return text
		}
	}

	if htmlTagRe.MatchString(trimmed) {
		if text := extractHTMLText(trimmed); text != "" {
			e.log.Debug("Extracted text from HTML",
				"rawBytes", len(raw),
				"textBytes", len(text))
			return text
		}
	}

	return raw
}

// PassthroughExtractor leaves content unchanged.
type PassthroughExtractor struct{}

func (PassthroughExtractor) Extract(raw string) string {
	return raw
}
