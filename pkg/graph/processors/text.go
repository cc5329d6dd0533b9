package processors

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// IngestResult is the normalized output of a processor, ready for
// extraction. Only plain text leaves this package.
type IngestResult struct {
	Text           string
	SourceType     string
	TokenCountHint int
}

// Processor turns one raw input format into extractable plain text.
type Processor interface {
	Process(ctx context.Context, content []byte) (*IngestResult, error)
	SupportedTypes() []string
}

// TextProcessor handles plain text and markdown-ish inputs.
type TextProcessor struct{}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

func (p *TextProcessor) Process(ctx context.Context, content []byte) (*IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := normalizeNewlines(string(content))
	return &IngestResult{
		Text:           text,
		SourceType:     "text",
		TokenCountHint: tokenCountHint(text),
	}, nil
}

func (p *TextProcessor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown"}
}

// ForPath picks a processor from a file extension, defaulting to plain text.
func ForPath(path string) Processor {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return NewHTMLProcessor()
	case strings.HasSuffix(lower, ".pdf"):
		return NewPDFProcessor()
	default:
		return NewTextProcessor()
	}
}

// tokenCountHint estimates the token count with the cl100k_base encoding,
// falling back to a whitespace count when the encoding tables are not
// available offline.
func tokenCountHint(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(strings.Fields(text))
	}
	return len(enc.Encode(text, nil, nil))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

var errEmptyDocument = errors.New("document contains no text")
