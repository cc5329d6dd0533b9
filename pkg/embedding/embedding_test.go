package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDim(t *testing.T) {
	assert.Equal(t, DefaultDim, ClampDim(0))
	assert.Equal(t, DefaultDim, ClampDim(-5))
	assert.Equal(t, MinDim, ClampDim(3))
	assert.Equal(t, MaxDim, ClampDim(100000))
	assert.Equal(t, 512, ClampDim(512))
}

func TestFallbackIsDeterministic(t *testing.T) {
	f := NewFallback(64)

	a, prov, err := f.Embed(context.Background(), "吾輩は猫である。", "ja")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceFallback, prov)

	b, _, err := f.Embed(context.Background(), "吾輩は猫である。", "en")
	require.NoError(t, err)
	// The language hint does not influence the fallback.
	assert.Equal(t, a, b)

	// Whitespace normalization keeps logically equal text equal.
	c, _, err := f.Embed(context.Background(), "  吾輩は猫である。 ", "ja")
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestFallbackDiffersByContent(t *testing.T) {
	f := NewFallback(64)

	a, _, err := f.Embed(context.Background(), "first", "en")
	require.NoError(t, err)
	b, _, err := f.Embed(context.Background(), "second", "en")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFallbackVectorIsUnitLength(t *testing.T) {
	f := NewFallback(DefaultDim)

	vec, _, err := f.Embed(context.Background(), "some text to embed", "en")
	require.NoError(t, err)
	require.Len(t, vec, DefaultDim)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestFallbackClampsDimensions(t *testing.T) {
	f := NewFallback(1)
	assert.Equal(t, MinDim, f.Dimensions())

	vec, _, err := f.Embed(context.Background(), "x", "en")
	require.NoError(t, err)
	assert.Len(t, vec, MinDim)
}

func TestNewOpenAIFromEnvRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIFromEnv(DefaultDim, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}
