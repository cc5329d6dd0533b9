package algorithms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bungolab/bungograph/pkg/graph"
)

func testGraph() *graph.GraphData {
	return &graph.GraphData{
		Nodes: []graph.Node{
			{ID: "w", Type: graph.NodeWork},
			{ID: "seg", Type: graph.NodeSegment},
			{ID: "s1", Type: graph.NodeSentence},
			{ID: "s2", Type: graph.NodeSentence},
			{ID: "e1", Type: graph.NodeEntity},
		},
		Edges: []graph.Edge{
			{ID: "1", Source: "w", Target: "seg", Type: graph.EdgeHasSegment},
			{ID: "2", Source: "seg", Target: "s1", Type: graph.EdgeHasSentence},
			{ID: "3", Source: "seg", Target: "s2", Type: graph.EdgeHasSentence},
			{ID: "4", Source: "s1", Target: "e1", Type: graph.EdgeMentions},
		},
	}
}

func TestTraverseBFSReachesWholeGraph(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	nodes, err := tr.Traverse(context.Background(), "w", 4, BFS)
	require.NoError(t, err)
	assert.Len(t, nodes, 5)
	assert.Equal(t, "w", nodes[0].ID)
}

func TestTraverseBFSRespectsDepth(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	nodes, err := tr.Traverse(context.Background(), "w", 1, BFS)
	require.NoError(t, err)
	// Depth one: the work and its segment.
	assert.Len(t, nodes, 2)
}

func TestTraverseDFSFollowsEdgesBothWays(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	// Starting from the entity climbs back through its mentioning sentence.
	nodes, err := tr.Traverse(context.Background(), "e1", 10, DFS)
	require.NoError(t, err)
	assert.Len(t, nodes, 5)
	assert.Equal(t, "e1", nodes[0].ID)
}

func TestTraverseUnknownStart(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	_, err := tr.Traverse(context.Background(), "nope", 3, BFS)
	assert.Error(t, err)
}

func TestTraverseUnsupportedType(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	_, err := tr.Traverse(context.Background(), "w", 3, TraversalType("random"))
	assert.Error(t, err)
}

func TestTraverseCancelledContext(t *testing.T) {
	tr := NewGraphTraversal(testGraph())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Traverse(ctx, "w", 3, BFS)
	assert.Error(t, err)
}
