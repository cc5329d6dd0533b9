package processors

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// HTMLProcessor extracts the readable text of an HTML document.
type HTMLProcessor struct{}

// NewHTMLProcessor creates a new instance of HTMLProcessor.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{}
}

// Process strips markup and script content, keeping paragraph breaks so the
// segmenter still sees block boundaries.
func (p *HTMLProcessor) Process(ctx context.Context, content []byte) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "parsing html")
	}

	doc.Find("script, style, noscript").Remove()

	var blocks []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	text := strings.Join(blocks, "\n\n")
	if text == "" {
		// No block elements; fall back to the whole body.
		text = strings.TrimSpace(doc.Find("body").Text())
	}
	if text == "" {
		return nil, errEmptyDocument
	}

	return &IngestResult{
		Text:           normalizeNewlines(text),
		SourceType:     "html",
		TokenCountHint: tokenCountHint(text),
	}, nil
}

// SupportedTypes returns the MIME types supported by the HTMLProcessor.
func (p *HTMLProcessor) SupportedTypes() []string {
	return []string{"text/html"}
}
