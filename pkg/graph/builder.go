package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GraphBuilder assembles a fully-annotated Work tree into the property
// graph handed to the serializers. Node and edge emission order is
// deterministic: work, segments by order, sentences by order, entities by
// first appearance, categories by consensus rank.
type GraphBuilder struct {
	ids    *IDGenerator
	logger *logrus.Logger
}

// NewGraphBuilder creates a builder sharing the pipeline's identifier
// generator so category node IDs continue the run's emission sequence.
func NewGraphBuilder(ids *IDGenerator) *GraphBuilder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &GraphBuilder{ids: ids, logger: logger}
}

// Build produces the property graph for one Work.
func (b *GraphBuilder) Build(work *Work) (*GraphData, error) {
	if work == nil {
		return nil, errors.New("cannot build graph from nil work")
	}

	g := &GraphData{
		Header: Header{
			Fingerprint: work.Fingerprint,
			SeedState:   b.ids.SeedState(),
			Strategy:    string(work.Strategy),
			GeneratedAt: time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	if work.Classification != nil {
		g.Header.Confidence = work.Classification.Confidence
	}

	g.Nodes = append(g.Nodes, b.workNode(work))

	for _, seg := range work.Segments {
		g.Nodes = append(g.Nodes, b.segmentNode(seg))
		g.Edges = append(g.Edges, Edge{
			ID:         edgeID(work.ID, EdgeHasSegment, seg.ID),
			Source:     work.ID,
			Target:     seg.ID,
			Type:       EdgeHasSegment,
			Properties: map[string]interface{}{"order": float64(seg.Order)},
			Weight:     1,
		})
		for _, sent := range seg.Sentences {
			g.Nodes = append(g.Nodes, b.sentenceNode(sent))
			g.Edges = append(g.Edges, Edge{
				ID:         edgeID(seg.ID, EdgeHasSentence, sent.ID),
				Source:     seg.ID,
				Target:     sent.ID,
				Type:       EdgeHasSentence,
				Properties: map[string]interface{}{"order": float64(sent.Order)},
				Weight:     1,
			})
		}
	}

	for _, ent := range work.Entities {
		g.Nodes = append(g.Nodes, b.entityNode(ent))
		for sentID, weight := range aggregateMentions(ent) {
			g.Edges = append(g.Edges, Edge{
				ID:         edgeID(sentID, EdgeMentions, ent.ID),
				Source:     sentID,
				Target:     ent.ID,
				Type:       EdgeMentions,
				Properties: map[string]interface{}{"weight": weight},
				Weight:     weight,
			})
		}
	}

	if work.Classification != nil {
		for rank, cand := range work.Classification.Consensus {
			catID := b.ids.Next(cand.Code, subtagCategory())
			g.Nodes = append(g.Nodes, Node{
				ID:    catID,
				Label: cand.Label,
				Type:  NodeCategory,
				Properties: map[string]interface{}{
					"code":  cand.Code,
					"label": cand.Label,
				},
			})
			g.Edges = append(g.Edges, Edge{
				ID:     edgeID(work.ID, EdgeClassifiedAs, catID),
				Source: work.ID,
				Target: catID,
				Type:   EdgeClassifiedAs,
				Properties: map[string]interface{}{
					"confidence": work.Classification.Confidence,
					"rank":       float64(rank),
					"score":      cand.Score,
					"status":     work.Classification.Status,
				},
				Weight: work.Classification.Confidence,
			})
		}
	}

	// MENTIONS edges are emitted per entity; re-sort the block by source
	// sentence so emission order is stable regardless of map iteration.
	sortEdges(g.Edges)

	b.logger.WithFields(logrus.Fields{
		"work_id": work.ID,
		"nodes":   len(g.Nodes),
		"edges":   len(g.Edges),
	}).Debug("graph assembled")
	return g, nil
}

func (b *GraphBuilder) workNode(work *Work) Node {
	props := map[string]interface{}{
		"title":         work.Title,
		"source_type":   work.SourceType,
		"ingested_at":   work.IngestedAt.Format(time.RFC3339Nano),
		"fingerprint":   work.Fingerprint,
		"strategy":      string(work.Strategy),
		"embedding_dim": float64(work.EmbeddingDim),
		"token_hint":    float64(work.TokenHint),
		"ontology":      toInterfaceMap(work.Ontology),
	}
	if work.Classification != nil {
		props["classification_status"] = work.Classification.Status
		props["classification_confidence"] = work.Classification.Confidence
		props["classification_agreement"] = work.Classification.Agreement
		if work.Classification.Correlation != nil {
			props["classification_correlation"] = *work.Classification.Correlation
		}
		// Per-source ranked lists ride along as one scalar string so every
		// store edition can carry the full audit record.
		if raw, err := json.Marshal(work.Classification.Sources); err == nil {
			props["classification_sources"] = string(raw)
		}
	}
	return Node{ID: work.ID, Label: work.Title, Type: NodeWork, Properties: props}
}

func (b *GraphBuilder) segmentNode(seg *Segment) Node {
	return Node{
		ID:    seg.ID,
		Label: fmt.Sprintf("segment %d", seg.Order),
		Type:  NodeSegment,
		Properties: map[string]interface{}{
			"order":         float64(seg.Order),
			"time_code_ms":  float64(seg.TimeCodeMS),
			"key_terms":     toInterfaceSlice(seg.KeyTerms),
			"dominant_axis": seg.DominantAxis,
			"length_hint":   float64(seg.LengthHint),
		},
	}
}

func (b *GraphBuilder) sentenceNode(sent *Sentence) Node {
	props := map[string]interface{}{
		"order":    float64(sent.Order),
		"ontology": toInterfaceMap(sent.Ontology),
		"features": toInterfaceMap(sent.Features),
	}
	if sent.Embedding != nil {
		props["embedding"] = float32sToInterfaces(sent.Embedding.Vector)
		props["embedding_dim"] = float64(sent.Embedding.Dim)
		props["embedding_provenance"] = sent.Embedding.Provenance
	}
	return Node{
		ID:         sent.ID,
		Label:      fmt.Sprintf("sentence %d", sent.Order),
		Type:       NodeSentence,
		Properties: props,
	}
}

func (b *GraphBuilder) entityNode(ent *Entity) Node {
	props := map[string]interface{}{
		"entity_type": string(ent.Type),
		"labels":      toInterfaceSlice(ent.Labels),
		"norm_label":  ent.NormLabel,
		"ontology":    toInterfaceMap(ent.Ontology),
	}
	if ent.Embedding != nil {
		props["embedding"] = float32sToInterfaces(ent.Embedding.Vector)
		props["embedding_dim"] = float64(ent.Embedding.Dim)
		props["embedding_provenance"] = ent.Embedding.Provenance
	}
	return Node{ID: ent.ID, Label: ent.Labels[0], Type: NodeEntity, Properties: props}
}

// aggregateMentions folds repeated mentions of an entity by the same
// sentence into one weighted edge.
func aggregateMentions(ent *Entity) map[string]float64 {
	out := make(map[string]float64, len(ent.Mentions))
	for _, m := range ent.Mentions {
		out[m.SentenceID] += m.Weight
	}
	return out
}

// sortEdges orders edges by type block, then source emission order, then
// target, keeping serialization deterministic.
func sortEdges(edges []Edge) {
	typeRank := map[string]int{
		EdgeHasSegment:   0,
		EdgeHasSentence:  1,
		EdgeMentions:     2,
		EdgeClassifiedAs: 3,
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if typeRank[edges[i].Type] != typeRank[edges[j].Type] {
			return typeRank[edges[i].Type] < typeRank[edges[j].Type]
		}
		if edges[i].Source != edges[j].Source {
			return EmissionKey(edges[i].Source)+edges[i].Source < EmissionKey(edges[j].Source)+edges[j].Source
		}
		return EmissionKey(edges[i].Target)+edges[i].Target < EmissionKey(edges[j].Target)+edges[j].Target
	})
}

func edgeID(src, typ, dst string) string {
	return fmt.Sprintf("%s-%s-%s", src, typ, dst)
}

func toInterfaceMap(m map[string]float64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func float32sToInterfaces(in []float32) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
