package content

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// minContentLength is the minimum extracted-text length (in characters) for
// readability output to be considered valid. Below this we assume the
// algorithm missed the main content and fall back to whole-document text.
const minContentLength = 50

// Shaper turns raw page HTML into prompt-ready text. Landing pages are
// mostly marketing copy scattered across sections, so the pipeline is:
// optional CSS-selector scoping → readability main-content extraction →
// markdown conversion, with a plain-text fallback when readability chokes.
//
// The converter is created once and reused across all requests.
type Shaper struct {
	mdConverter *converter.Converter
}

// NewShaper initialises the Shaper with a pre-configured Markdown converter.
func NewShaper() *Shaper {
	return &Shaper{mdConverter: newMarkdownConverter()}
}

// FromHTML extracts prompt text from raw HTML. selector, when non-empty,
// confines extraction to the matched elements. Never fails: on any stage
// error it degrades to stripped whole-document text.
func (s *Shaper) FromHTML(rawHTML, sourceURL, selector string) string {
	if selector != "" {
		scoped, err := ApplyCSSSelector(rawHTML, selector)
		if err != nil {
			slog.Warn("css selector invalid, using full document",
				"selector", selector, "error", err)
		} else {
			rawHTML = scoped
		}
	}

	article, ok := extractMain(rawHTML, sourceURL)
	if !ok {
		return stripTags(rawHTML)
	}

	md, err := toMarkdown(s.mdConverter, article.Content, sourceURL)
	if err != nil {
		slog.Warn("markdown conversion failed, using plain text",
			"url", sourceURL, "error", err)
		return strings.TrimSpace(article.TextContent)
	}
	return strings.TrimSpace(md)
}

// extractMain runs the Mozilla Readability algorithm on rawHTML. The second
// return value is false when the result should not be trusted.
func extractMain(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return readability.Article{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability extraction failed",
			"url", sourceURL, "error", err)
		return readability.Article{}, false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{}, false
	}

	return article, true
}

// stripTags extracts visible text from an HTML fragment by parsing it with
// goquery. Returns trimmed plain text; on parse failure returns the input.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
