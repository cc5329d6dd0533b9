// Package embedding provides the pluggable vector-embedding capability: a
// model-backed implementation and a deterministic fallback generator. The
// extraction engine accepts any Embedder; when the model does not answer
// within its bounded timeout the fallback takes over, because the pipeline
// must discard original text promptly regardless of embedding availability.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Provenance tags where a vector came from.
type Provenance string

const (
	ProvenanceModel    Provenance = "model"
	ProvenanceFallback Provenance = "fallback"
)

// ErrUnavailable marks a model embedding capability that timed out or is
// absent. Implementations recover via the fallback generator; it is never
// fatal.
var ErrUnavailable = errors.New("embedding capability unavailable")

// Dimensionality bounds.
const (
	MinDim     = 16
	MaxDim     = 4096
	DefaultDim = 256
)

// Embedder is the external embedding capability contract.
type Embedder interface {
	Embed(ctx context.Context, text, languageHint string) ([]float32, Provenance, error)
	Dimensions() int
}

// ClampDim bounds a requested dimensionality, substituting the default for
// non-positive values.
func ClampDim(dim int) int {
	if dim <= 0 {
		return DefaultDim
	}
	if dim < MinDim {
		return MinDim
	}
	if dim > MaxDim {
		return MaxDim
	}
	return dim
}

// Fallback derives a reproducible pseudo-vector from a content hash. Same
// text and dimensionality always produce the same vector, across runs and
// processes.
type Fallback struct {
	dim int
}

// NewFallback creates a fallback generator with clamped dimensionality.
func NewFallback(dim int) *Fallback {
	return &Fallback{dim: ClampDim(dim)}
}

// Dimensions implements Embedder.
func (f *Fallback) Dimensions() int { return f.dim }

// Embed expands a SHA-256 seed of the normalized text into an L2-normalized
// vector. The language hint does not influence the fallback.
func (f *Fallback) Embed(_ context.Context, text, _ string) ([]float32, Provenance, error) {
	seed := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))

	vec := make([]float32, f.dim)
	block := seed[:]
	var norm float64
	for i := 0; i < f.dim; i++ {
		if i%8 == 0 && i > 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		bits := binary.BigEndian.Uint32(block[(i%8)*4 : (i%8)*4+4])
		// Map to [-1, 1).
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, ProvenanceFallback, nil
}
