package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

func newTestScorer(t *testing.T) *OntologyScorer {
	t.Helper()
	scorer, err := NewOntologyScorer(catalog.DefaultAxes())
	require.NoError(t, err)
	return scorer
}

func assertDistribution(t *testing.T, weights map[string]float64) {
	t.Helper()
	sum := 0.0
	for _, w := range weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestScoreNormalizesToOne(t *testing.T) {
	scorer := newTestScorer(t)

	weights := scorer.Score("Yesterday evening she cried with joy in the garden.")
	assertDistribution(t, weights)
	assert.Greater(t, weights[catalog.AxisEmotion], weights[catalog.AxisCausality])
}

func TestScoreNoHitsFallsBackToUniform(t *testing.T) {
	scorer := newTestScorer(t)

	weights := scorer.Score("xyzzy qwerty")
	assertDistribution(t, weights)
	uniform := 1.0 / float64(len(catalog.DefaultAxes()))
	for name, w := range weights {
		assert.InDelta(t, uniform, w, 1e-9, "axis %s", name)
	}
}

func TestScoreJapaneseNarrative(t *testing.T) {
	scorer := newTestScorer(t)

	weights := scorer.Score("吾輩は猫である。")
	assertDistribution(t, weights)
	assert.Equal(t, catalog.AxisNarrative, scorer.DominantAxis(weights))
}

func TestDominantAxisTieBreaksByCatalogOrder(t *testing.T) {
	scorer := newTestScorer(t)

	uniform := make(map[string]float64)
	for _, axis := range scorer.Axes() {
		uniform[axis.Name] = 0.125
	}
	assert.Equal(t, catalog.AxisTemporal, scorer.DominantAxis(uniform))
}

func TestAggregateStrategies(t *testing.T) {
	scorer := newTestScorer(t)

	segments := []*Segment{
		{Sentences: []*Sentence{
			{Ontology: map[string]float64{catalog.AxisEmotion: 1.0}},
			{Ontology: map[string]float64{catalog.AxisTemporal: 1.0}},
		}},
		{Sentences: []*Sentence{
			{Ontology: map[string]float64{catalog.AxisEmotion: 1.0}},
		}},
	}

	sentMean, err := scorer.Aggregate(segments, "", AggregateSentenceMean)
	require.NoError(t, err)
	assertDistribution(t, sentMean)
	assert.InDelta(t, 2.0/3.0, sentMean[catalog.AxisEmotion], 1e-9)

	segMean, err := scorer.Aggregate(segments, "", AggregateSegmentMean)
	require.NoError(t, err)
	assertDistribution(t, segMean)
	assert.InDelta(t, 0.75, segMean[catalog.AxisEmotion], 1e-9)

	docLevel, err := scorer.Aggregate(segments, "she cried with joy", AggregateDocumentLevel)
	require.NoError(t, err)
	assertDistribution(t, docLevel)
	assert.Equal(t, catalog.AxisEmotion, scorer.DominantAxis(docLevel))
}

func TestAggregateUnknownStrategy(t *testing.T) {
	scorer := newTestScorer(t)

	_, err := scorer.Aggregate(nil, "", AggregationStrategy("median"))
	assert.Error(t, err)
}

func TestNewOntologyScorerRejectsBadCatalog(t *testing.T) {
	_, err := NewOntologyScorer(nil)
	assert.Error(t, err)

	_, err = NewOntologyScorer([]catalog.Axis{{Name: "broken", Patterns: []string{"("}, Boost: 1}})
	assert.Error(t, err)

	_, err = NewOntologyScorer([]catalog.Axis{{Name: "flat", Patterns: []string{"x"}, Boost: 0}})
	assert.Error(t, err)
}
