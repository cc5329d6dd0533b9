package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextProcessorNormalizesNewlines(t *testing.T) {
	p := NewTextProcessor()

	res, err := p.Process(context.Background(), []byte("line one\r\nline two\rline three"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", res.Text)
	assert.Equal(t, "text", res.SourceType)
	assert.Greater(t, res.TokenCountHint, 0)
}

func TestHTMLProcessorExtractsBlockText(t *testing.T) {
	p := NewHTMLProcessor()

	html := `<html><head><style>p { color: red; }</style></head><body>
		<script>var x = 1;</script>
		<h1>吾輩は猫である</h1>
		<p>名前はまだ無い。</p>
		<p>どこで生れたか。</p>
	</body></html>`

	res, err := p.Process(context.Background(), []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "html", res.SourceType)
	assert.Contains(t, res.Text, "吾輩は猫である")
	assert.Contains(t, res.Text, "名前はまだ無い。")
	// Blocks become paragraph boundaries; script and style content is gone.
	assert.Contains(t, res.Text, "\n\n")
	assert.NotContains(t, res.Text, "var x")
	assert.NotContains(t, res.Text, "color: red")
}

func TestHTMLProcessorFallsBackToBody(t *testing.T) {
	p := NewHTMLProcessor()

	res, err := p.Process(context.Background(), []byte("<html><body>bare text</body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "bare text", res.Text)
}

func TestHTMLProcessorRejectsEmptyDocument(t *testing.T) {
	p := NewHTMLProcessor()

	_, err := p.Process(context.Background(), []byte("<html><body></body></html>"))
	assert.Error(t, err)
}

func TestPDFProcessorRejectsGarbage(t *testing.T) {
	p := NewPDFProcessor()

	_, err := p.Process(context.Background(), []byte("this is not a pdf"))
	assert.Error(t, err)
}

func TestForPath(t *testing.T) {
	assert.IsType(t, &HTMLProcessor{}, ForPath("page.HTML"))
	assert.IsType(t, &PDFProcessor{}, ForPath("/tmp/doc.pdf"))
	assert.IsType(t, &TextProcessor{}, ForPath("story.txt"))
	assert.IsType(t, &TextProcessor{}, ForPath("README"))
}

func TestProcessorsHonorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTextProcessor().Process(ctx, []byte("text"))
	assert.Error(t, err)
	_, err = NewHTMLProcessor().Process(ctx, []byte("<p>x</p>"))
	assert.Error(t, err)
}
