package processors

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// PDFProcessor extracts plain text from a PDF, page by page. Pages that
// fail to decode are skipped rather than failing the whole document.
type PDFProcessor struct{}

func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{}
}

func (p *PDFProcessor) Process(ctx context.Context, content []byte) (*IngestResult, error) {
	reader := bytes.NewReader(content)

	r, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return nil, errors.Wrap(err, "opening pdf")
	}

	var pages []string
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	text := strings.Join(pages, "\n\n")
	if text == "" {
		return nil, errEmptyDocument
	}

	return &IngestResult{
		Text:           normalizeNewlines(text),
		SourceType:     "pdf",
		TokenCountHint: tokenCountHint(text),
	}, nil
}

func (p *PDFProcessor) SupportedTypes() []string {
	return []string{"application/pdf"}
}
