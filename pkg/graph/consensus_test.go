package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

func newTestEngine() *ConsensusEngine {
	return NewConsensusEngine(DefaultConsensusConfig(),
		catalog.DefaultSubjectTaxonomy(), catalog.DefaultGenreCatalog())
}

func TestClassifyLiteraryNarrative(t *testing.T) {
	e := newTestEngine()

	result := e.Classify(catalog.Features{
		KeyTerms: map[string]float64{
			"である": 1.0, "吾輩": 1.0, "猫": 1.0, "物語": 0.5,
		},
		Ontology: map[string]float64{
			catalog.AxisNarrative:    0.5,
			catalog.AxisRelationship: 0.2,
			catalog.AxisEmotion:      0.2,
			catalog.AxisTemporal:     0.1,
		},
		TokenCount:    20,
		SentenceCount: 2,
	})

	require.NotEqual(t, StatusNone, result.Status)
	require.NotEmpty(t, result.Consensus)
	// The top category is the japanese-fiction subject or its genre twin;
	// both literature codes must rank somewhere in the consensus list.
	assert.Contains(t, []string{"913", "novel"}, result.Consensus[0].Code)
	codes := make(map[string]bool, len(result.Consensus))
	for _, c := range result.Consensus {
		codes[c.Code] = true
	}
	assert.True(t, codes["913"])
	assert.True(t, codes["900"])
	assert.Greater(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	require.Len(t, result.Sources, 3)
}

func TestClassifyTwoEmptySourcesYieldsNoClassification(t *testing.T) {
	e := newTestEngine()

	result := e.Classify(catalog.Features{})

	assert.Equal(t, StatusNone, result.Status)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Consensus)
	require.Len(t, result.Sources, 3)
}

func TestClassifyCompleteDisagreementYieldsNoClassification(t *testing.T) {
	e := newTestEngine()

	// "truth" votes only in the subject table, "dear" only in the genre
	// table; without any ontology signal the pair shares nothing.
	result := e.Classify(catalog.Features{
		KeyTerms: map[string]float64{"truth": 1.0, "dear": 1.0},
	})

	assert.Equal(t, StatusNone, result.Status)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, result.Agreement)
	assert.Empty(t, result.Consensus)
}

func TestClassifyUncertainAppliesPenalty(t *testing.T) {
	lowPenalty := NewConsensusEngine(ConsensusConfig{UncertainPenalty: 0.5},
		catalog.DefaultSubjectTaxonomy(), catalog.DefaultGenreCatalog())
	noPenalty := NewConsensusEngine(ConsensusConfig{UncertainPenalty: 1.0},
		catalog.DefaultSubjectTaxonomy(), catalog.DefaultGenreCatalog())

	f := catalog.Features{
		KeyTerms: map[string]float64{"である": 1.0, "猫": 1.0, "名前": 1.0},
		Ontology: map[string]float64{
			catalog.AxisNarrative: 0.5,
			catalog.AxisTemporal:  0.5,
		},
	}

	a := lowPenalty.Classify(f)
	b := noPenalty.Classify(f)
	require.Equal(t, a.Status, b.Status)
	if a.Status == StatusUncertain {
		assert.InDelta(t, b.Confidence*0.5, a.Confidence, 1e-9)
	}
}

func TestTopOverlap(t *testing.T) {
	a := []Candidate{{Code: "913"}, {Code: "900"}, {Code: "200"}}
	b := []Candidate{{Code: "913"}, {Code: "novel"}, {Code: "900"}, {Code: "100"}}

	// Two of the smaller list's three codes appear in the other's top-3.
	assert.InDelta(t, 2.0/3.0, topOverlap(a, b, 3), 1e-9)
	assert.Zero(t, topOverlap(a, nil, 3))
}

func TestPearsonTop5(t *testing.T) {
	a := []Candidate{{Code: "x", Score: 3}, {Code: "y", Score: 2}, {Code: "z", Score: 1}}
	b := []Candidate{{Code: "x", Score: 0.6}, {Code: "y", Score: 0.4}, {Code: "z", Score: 0.2}}

	r, ok := pearsonTop5(a, b)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	// Fewer than three shared points is not computable.
	_, ok = pearsonTop5(a[:1], b[:1])
	assert.False(t, ok)

	// Zero variance is not computable.
	flat := []Candidate{{Code: "x", Score: 1}, {Code: "y", Score: 1}, {Code: "z", Score: 1}}
	_, ok = pearsonTop5(flat, b)
	assert.False(t, ok)
}

func TestAnalyzePairsKeepsStrongestCorrelation(t *testing.T) {
	e := newTestEngine()

	sources := []SourceResult{
		{Source: SourceSubject, Candidates: []Candidate{
			{Code: "A", Score: 3}, {Code: "B", Score: 2}, {Code: "C", Score: 1},
		}},
		{Source: SourceGenre, Candidates: []Candidate{
			{Code: "D", Score: 3}, {Code: "B", Score: 2}, {Code: "A", Score: 1},
		}},
		{Source: SourceOntology, Candidates: []Candidate{
			{Code: "A", Score: 3}, {Code: "B", Score: 2}, {Code: "C", Score: 1},
		}},
	}

	pa := e.analyzePairs(sources)
	// The subject-ontology pair correlates perfectly; the later, weaker
	// genre-ontology pair must not replace it.
	require.NotNil(t, pa.corr)
	assert.InDelta(t, 1.0, *pa.corr, 1e-9)
}

func TestNormalizedTopScore(t *testing.T) {
	cands := []Candidate{{Score: 4}, {Score: 2}, {Score: 1}}
	assert.InDelta(t, 1.0, normalizedTopScore(cands), 1e-9)

	midTop := []Candidate{{Score: 2}, {Score: 4}, {Score: 1}}
	assert.InDelta(t, 1.0/3.0, normalizedTopScore(midTop), 1e-9)

	single := []Candidate{{Score: 7}}
	assert.InDelta(t, 1.0, normalizedTopScore(single), 1e-9)
}

func TestDeriveFromOntologySpansBothNamespaces(t *testing.T) {
	e := newTestEngine()

	cands := e.deriveFromOntology(map[string]float64{catalog.AxisNarrative: 1.0})
	require.NotEmpty(t, cands)

	codes := make(map[string]bool, len(cands))
	for _, c := range cands {
		codes[c.Code] = true
	}
	assert.True(t, codes["913"])
	assert.True(t, codes["novel"])
	assert.Equal(t, "japanese fiction", cands[0].Label)
}
