package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func extractTestWork(t *testing.T) (*Work, *GraphData) {
	t.Helper()
	p := newTestPipeline(t)
	work, _, err := p.Extract(context.Background(), "吾輩は猫である",
		"吾輩は猫である。名前はまだ無い。\n\nどこで生れたかとんと見当がつかぬ。", "text", 0)
	require.NoError(t, err)

	g, err := NewGraphBuilder(p.IDs()).Build(work)
	require.NoError(t, err)
	return work, g
}

func TestBuildGraphShape(t *testing.T) {
	work, g := extractTestWork(t)

	counts := make(map[string]int)
	for _, n := range g.Nodes {
		counts[n.Type]++
	}
	assert.Equal(t, 1, counts[NodeWork])
	assert.Equal(t, len(work.Segments), counts[NodeSegment])
	assert.Equal(t, 3, counts[NodeSentence])
	assert.Equal(t, len(work.Entities), counts[NodeEntity])
	assert.Equal(t, len(work.Classification.Consensus), counts[NodeCategory])

	assert.Equal(t, work.Fingerprint, g.Header.Fingerprint)
	assert.Contains(t, g.Header.SeedState, "run=")
	assert.Equal(t, work.Classification.Confidence, g.Header.Confidence)
}

func TestBuildEdgesAreTypedAndOrdered(t *testing.T) {
	_, g := extractTestWork(t)

	typeRank := map[string]int{
		EdgeHasSegment: 0, EdgeHasSentence: 1, EdgeMentions: 2, EdgeClassifiedAs: 3,
	}
	prev := -1
	for _, e := range g.Edges {
		rank, ok := typeRank[e.Type]
		require.True(t, ok, "unexpected edge type %s", e.Type)
		assert.GreaterOrEqual(t, rank, prev)
		prev = rank
	}

	// Every edge endpoint exists.
	nodes := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = true
	}
	for _, e := range g.Edges {
		assert.True(t, nodes[e.Source], "edge %s dangling source", e.ID)
		assert.True(t, nodes[e.Target], "edge %s dangling target", e.ID)
	}
}

func TestBuildCarriesClassificationSourcesAsScalar(t *testing.T) {
	work, g := extractTestWork(t)

	var workNode *Node
	for i := range g.Nodes {
		if g.Nodes[i].Type == NodeWork {
			workNode = &g.Nodes[i]
		}
	}
	require.NotNil(t, workNode)

	raw, ok := workNode.Properties["classification_sources"].(string)
	require.True(t, ok)
	parsed := gjson.Parse(raw)
	require.True(t, parsed.IsArray())
	assert.Equal(t, int64(len(work.Classification.Sources)), parsed.Get("#").Int())
	assert.Equal(t, "subject", parsed.Get("0.source").String())
}

func TestBuildOmitsSentenceText(t *testing.T) {
	_, g := extractTestWork(t)

	for _, n := range g.Nodes {
		if n.Type != NodeSentence {
			continue
		}
		for key := range n.Properties {
			assert.NotEqual(t, "text", key)
		}
	}
}

func TestToWorkReconstructsTree(t *testing.T) {
	work, g := extractTestWork(t)

	rebuilt, err := g.ToWork()
	require.NoError(t, err)

	assert.Equal(t, work.ID, rebuilt.ID)
	assert.Equal(t, work.Title, rebuilt.Title)
	assert.Equal(t, work.Fingerprint, rebuilt.Fingerprint)
	assert.Equal(t, work.Strategy, rebuilt.Strategy)
	assert.True(t, work.IngestedAt.Equal(rebuilt.IngestedAt))

	require.Len(t, rebuilt.Segments, len(work.Segments))
	for i, seg := range work.Segments {
		assert.Equal(t, seg.ID, rebuilt.Segments[i].ID)
		assert.Equal(t, seg.Order, rebuilt.Segments[i].Order)
		assert.Equal(t, seg.TimeCodeMS, rebuilt.Segments[i].TimeCodeMS)
		assert.Equal(t, seg.KeyTerms, rebuilt.Segments[i].KeyTerms)
		require.Len(t, rebuilt.Segments[i].Sentences, len(seg.Sentences))
		for j, sent := range seg.Sentences {
			assert.Equal(t, sent.ID, rebuilt.Segments[i].Sentences[j].ID)
			assert.Equal(t, sent.Ontology, rebuilt.Segments[i].Sentences[j].Ontology)
		}
	}

	require.Len(t, rebuilt.Entities, len(work.Entities))
	for i, ent := range work.Entities {
		assert.Equal(t, ent.ID, rebuilt.Entities[i].ID)
		assert.Equal(t, ent.NormLabel, rebuilt.Entities[i].NormLabel)
		assert.Equal(t, ent.Type, rebuilt.Entities[i].Type)
	}

	require.NotNil(t, rebuilt.Classification)
	assert.Equal(t, work.Classification.Status, rebuilt.Classification.Status)
	assert.Equal(t, work.Classification.Confidence, rebuilt.Classification.Confidence)
	require.Len(t, rebuilt.Classification.Sources, len(work.Classification.Sources))
	// The ranked consensus list comes back through the category nodes and
	// their classification edges.
	assert.Equal(t, work.Classification.Consensus, rebuilt.Classification.Consensus)
}

func TestBuildNilWork(t *testing.T) {
	_, err := NewGraphBuilder(NewIDGenerator()).Build(nil)
	assert.Error(t, err)
}
