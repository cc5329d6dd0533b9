package graph

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ToWork rebuilds the internal tree model from a property graph. This is
// the read contract the restoration step consumes, and the basis of the
// round-trip guarantee between the two serialized artifacts.
func (g *GraphData) ToWork() (*Work, error) {
	nodesByID := make(map[string]*Node, len(g.Nodes))
	var workNode *Node
	for i := range g.Nodes {
		n := &g.Nodes[i]
		nodesByID[n.ID] = n
		if n.Type == NodeWork {
			if workNode != nil {
				return nil, errors.New("graph contains more than one work node")
			}
			workNode = n
		}
	}
	if workNode == nil {
		return nil, errors.New("graph contains no work node")
	}

	work, err := workFromNode(workNode)
	if err != nil {
		return nil, err
	}

	segments, err := g.childrenOf(workNode.ID, EdgeHasSegment, nodesByID)
	if err != nil {
		return nil, err
	}
	for _, segNode := range segments {
		seg := segmentFromNode(segNode)
		sentences, err := g.childrenOf(segNode.ID, EdgeHasSentence, nodesByID)
		if err != nil {
			return nil, err
		}
		for _, sentNode := range sentences {
			seg.Sentences = append(seg.Sentences, sentenceFromNode(sentNode))
		}
		work.Segments = append(work.Segments, seg)
	}

	work.Entities = g.entities(nodesByID)
	if work.Classification != nil {
		work.Classification.Consensus = g.consensusCandidates(workNode.ID, nodesByID)
	}
	return work, nil
}

// consensusCandidates rebuilds the ranked consensus list from the
// classification edges and their category nodes.
func (g *GraphData) consensusCandidates(workID string, nodes map[string]*Node) []Candidate {
	type ranked struct {
		rank float64
		cand Candidate
	}
	found := make([]ranked, 0)
	for _, e := range g.Edges {
		if e.Type != EdgeClassifiedAs || e.Source != workID {
			continue
		}
		cat, ok := nodes[e.Target]
		if !ok || cat.Type != NodeCategory {
			continue
		}
		found = append(found, ranked{
			rank: propFloat(e.Properties, "rank"),
			cand: Candidate{
				Code:  propString(cat.Properties, "code"),
				Label: propString(cat.Properties, "label"),
				Score: propFloat(e.Properties, "score"),
			},
		})
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].rank < found[j].rank })
	out := make([]Candidate, len(found))
	for i, r := range found {
		out[i] = r.cand
	}
	return out
}

// childrenOf returns the nodes reached by the given containment edge type,
// ordered by the edge order property.
func (g *GraphData) childrenOf(parentID, edgeType string, nodes map[string]*Node) ([]*Node, error) {
	type child struct {
		order float64
		node  *Node
	}
	children := make([]child, 0)
	for _, e := range g.Edges {
		if e.Type != edgeType || e.Source != parentID {
			continue
		}
		node, ok := nodes[e.Target]
		if !ok {
			return nil, errors.Errorf("edge %s targets unknown node %s", e.ID, e.Target)
		}
		children = append(children, child{order: propFloat(e.Properties, "order"), node: node})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].order < children[j].order })
	out := make([]*Node, len(children))
	for i, c := range children {
		out[i] = c.node
	}
	return out, nil
}

// entities rebuilds the de-duplicated entity list with aggregated mention
// weights, ordered by entity emission.
func (g *GraphData) entities(nodes map[string]*Node) []*Entity {
	byID := make(map[string]*Entity)
	order := make([]string, 0)
	for _, n := range g.Nodes {
		if n.Type != NodeEntity {
			continue
		}
		ent := &Entity{
			ID:        n.ID,
			Type:      EntityType(propString(n.Properties, "entity_type")),
			Labels:    propStrings(n.Properties, "labels"),
			NormLabel: propString(n.Properties, "norm_label"),
			Ontology:  propFloatMap(n.Properties, "ontology"),
			Embedding: embeddingFromProps(n.Properties),
		}
		byID[n.ID] = ent
		order = append(order, n.ID)
	}
	for _, e := range g.Edges {
		if e.Type != EdgeMentions {
			continue
		}
		if ent, ok := byID[e.Target]; ok {
			ent.Mentions = append(ent.Mentions, Mention{
				SentenceID: e.Source,
				Weight:     propFloat(e.Properties, "weight"),
			})
		}
	}
	out := make([]*Entity, 0, len(order))
	for _, id := range order {
		ent := byID[id]
		sort.Slice(ent.Mentions, func(i, j int) bool {
			return EmissionKey(ent.Mentions[i].SentenceID)+ent.Mentions[i].SentenceID <
				EmissionKey(ent.Mentions[j].SentenceID)+ent.Mentions[j].SentenceID
		})
		out = append(out, ent)
	}
	return out
}

func workFromNode(n *Node) (*Work, error) {
	ingested, err := time.Parse(time.RFC3339Nano, propString(n.Properties, "ingested_at"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing work ingestion timestamp")
	}
	work := &Work{
		ID:           n.ID,
		Title:        propString(n.Properties, "title"),
		SourceType:   propString(n.Properties, "source_type"),
		IngestedAt:   ingested.UTC(),
		Fingerprint:  propString(n.Properties, "fingerprint"),
		Ontology:     propFloatMap(n.Properties, "ontology"),
		Strategy:     AggregationStrategy(propString(n.Properties, "strategy")),
		EmbeddingDim: int(propFloat(n.Properties, "embedding_dim")),
		TokenHint:    int(propFloat(n.Properties, "token_hint")),
	}

	if status := propString(n.Properties, "classification_status"); status != "" {
		cls := &ClassificationResult{
			Status:     status,
			Confidence: propFloat(n.Properties, "classification_confidence"),
			Agreement:  propFloat(n.Properties, "classification_agreement"),
		}
		if v, ok := n.Properties["classification_correlation"]; ok {
			f := asFloat(v)
			cls.Correlation = &f
		}
		if raw := propString(n.Properties, "classification_sources"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &cls.Sources); err != nil {
				return nil, errors.Wrap(err, "parsing classification sources")
			}
		}
		work.Classification = cls
	}
	return work, nil
}

func segmentFromNode(n *Node) *Segment {
	return &Segment{
		ID:           n.ID,
		Order:        int(propFloat(n.Properties, "order")),
		TimeCodeMS:   int64(propFloat(n.Properties, "time_code_ms")),
		KeyTerms:     propStrings(n.Properties, "key_terms"),
		DominantAxis: propString(n.Properties, "dominant_axis"),
		LengthHint:   int(propFloat(n.Properties, "length_hint")),
	}
}

func sentenceFromNode(n *Node) *Sentence {
	return &Sentence{
		ID:        n.ID,
		Order:     int(propFloat(n.Properties, "order")),
		Ontology:  propFloatMap(n.Properties, "ontology"),
		Features:  propFloatMap(n.Properties, "features"),
		Embedding: embeddingFromProps(n.Properties),
	}
}

func embeddingFromProps(props map[string]interface{}) *Embedding {
	raw, ok := props["embedding"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	vec := make([]float32, len(list))
	for i, v := range list {
		vec[i] = float32(asFloat(v))
	}
	return &Embedding{
		Vector:     vec,
		Dim:        int(propFloat(props, "embedding_dim")),
		Provenance: propString(props, "embedding_provenance"),
	}
}

func propString(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propFloat(props map[string]interface{}, key string) float64 {
	if v, ok := props[key]; ok {
		return asFloat(v)
	}
	return 0
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

func propFloatMap(props map[string]interface{}, key string) map[string]float64 {
	raw, ok := props[key].(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = asFloat(v)
	}
	return out
}

func propStrings(props map[string]interface{}, key string) []string {
	raw, ok := props[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
