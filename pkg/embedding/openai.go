package embedding

import (
	"context"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OpenAI backs the embedding capability with an OpenAI-compatible endpoint.
// Every call is bounded by a timeout; on any failure the deterministic
// fallback answers instead, tagged with its provenance, and the error is
// logged as a warning rather than surfaced.
type OpenAI struct {
	client   *openai.Client
	model    openai.EmbeddingModel
	dim      int
	timeout  time.Duration
	fallback *Fallback
	logger   *logrus.Logger
}

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 5 * time.Second

// NewOpenAIFromEnv builds a model-backed embedder from OPENAI_API_KEY and
// optional OPENAI_BASE_URL / OPENAI_EMBEDDING_MODEL.
func NewOpenAIFromEnv(dim int, timeout time.Duration) (*OpenAI, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.Wrap(ErrUnavailable, "OPENAI_API_KEY is not set")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.BaseURL = baseURL
	}

	model := openai.EmbeddingModel(os.Getenv("OPENAI_EMBEDDING_MODEL"))
	if model == "" {
		model = openai.SmallEmbedding3
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dim = ClampDim(dim)

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &OpenAI{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		dim:      dim,
		timeout:  timeout,
		fallback: NewFallback(dim),
		logger:   logger,
	}, nil
}

// Dimensions implements Embedder.
func (o *OpenAI) Dimensions() int { return o.dim }

// Embed requests a model vector within the bounded timeout, falling back to
// the deterministic generator on any failure.
func (o *OpenAI) Embed(ctx context.Context, text, languageHint string) ([]float32, Provenance, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      o.model,
		Dimensions: o.dim,
	})
	if err != nil || len(resp.Data) == 0 {
		o.logger.WithError(err).WithField("language_hint", languageHint).
			Warn("embedding model unavailable, using fallback generator")
		return o.fallback.Embed(ctx, text, languageHint)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != o.dim {
		o.logger.WithFields(logrus.Fields{
			"want": o.dim,
			"got":  len(vec),
		}).Warn("embedding dimensionality mismatch, using fallback generator")
		return o.fallback.Embed(ctx, text, languageHint)
	}
	return vec, ProvenanceModel, nil
}
