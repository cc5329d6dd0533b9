package algorithms

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bungolab/bungograph/pkg/graph"
)

type TraversalType string

const (
	BFS TraversalType = "BFS"
	DFS TraversalType = "DFS"
)

// GraphTraversal walks a loaded property graph. Edges are followed in both
// directions, so starting from an entity reaches the sentences that mention
// it and from there the rest of the work.
type GraphTraversal struct {
	nodes    map[string]graph.Node
	adjacent map[string][]string
}

func NewGraphTraversal(g *graph.GraphData) *GraphTraversal {
	t := &GraphTraversal{
		nodes:    make(map[string]graph.Node, len(g.Nodes)),
		adjacent: make(map[string][]string),
	}
	for _, n := range g.Nodes {
		t.nodes[n.ID] = n
	}
	for _, e := range g.Edges {
		t.adjacent[e.Source] = append(t.adjacent[e.Source], e.Target)
		t.adjacent[e.Target] = append(t.adjacent[e.Target], e.Source)
	}
	return t
}

// Traverse visits nodes reachable from startID within maxDepth hops.
func (t *GraphTraversal) Traverse(ctx context.Context, startID string, maxDepth int, traversalType TraversalType) ([]graph.Node, error) {
	if _, ok := t.nodes[startID]; !ok {
		return nil, errors.Errorf("unknown start node: %s", startID)
	}
	visited := make(map[string]bool)

	switch traversalType {
	case BFS:
		return t.bfs(ctx, startID, maxDepth, visited)
	case DFS:
		result := make([]graph.Node, 0)
		return t.dfs(ctx, startID, maxDepth, visited, &result)
	default:
		return nil, errors.Errorf("unsupported traversal type: %s", traversalType)
	}
}

func (t *GraphTraversal) bfs(ctx context.Context, startID string, maxDepth int, visited map[string]bool) ([]graph.Node, error) {
	queue := []string{startID}
	result := make([]graph.Node, 0)
	depth := 0

	for len(queue) > 0 && depth <= maxDepth {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		levelSize := len(queue)
		for i := 0; i < levelSize; i++ {
			current := queue[0]
			queue = queue[1:]

			if visited[current] {
				continue
			}
			visited[current] = true
			result = append(result, t.nodes[current])

			for _, next := range t.adjacent[current] {
				if !visited[next] {
					queue = append(queue, next)
				}
			}
		}
		depth++
	}

	return result, nil
}

func (t *GraphTraversal) dfs(ctx context.Context, currentID string, maxDepth int, visited map[string]bool, result *[]graph.Node) ([]graph.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxDepth < 0 || visited[currentID] {
		return *result, nil
	}

	visited[currentID] = true
	*result = append(*result, t.nodes[currentID])

	for _, next := range t.adjacent[currentID] {
		if !visited[next] {
			if _, err := t.dfs(ctx, next, maxDepth-1, visited, result); err != nil {
				return nil, err
			}
		}
	}

	return *result, nil
}
