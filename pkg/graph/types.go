package graph

import (
	"time"
)

// AggregationStrategy selects how sentence-level ontology weights are rolled
// up to the Work level. Results computed under different strategies are not
// comparable, so the strategy is recorded on the Work.
type AggregationStrategy string

const (
	AggregateDocumentLevel AggregationStrategy = "document_level"
	AggregateSentenceMean  AggregationStrategy = "sentence_mean"
	AggregateSegmentMean   AggregationStrategy = "segment_mean"
)

// EntityType is the fixed set of abstracted entity kinds.
type EntityType string

const (
	EntityPerson   EntityType = "person"
	EntityPlace    EntityType = "place"
	EntityEvent    EntityType = "event"
	EntityConcept  EntityType = "concept"
	EntityEmotion  EntityType = "emotion"
	EntityTemporal EntityType = "temporal"
)

// Embedding is a fixed-dimensionality vector attached to a sentence or
// entity, tagged with where it came from.
type Embedding struct {
	Vector     []float32 `json:"vector"`
	Dim        int       `json:"dim"`
	Provenance string    `json:"provenance"` // "model" or "fallback"
}

// Sentence is an ordered sub-division of a Segment. The raw text only lives
// in the unexported field during extraction and is blanked before the Work
// leaves the pipeline; it is never serialized.
type Sentence struct {
	ID        string             `json:"id"`
	Order     int                `json:"order"`
	Ontology  map[string]float64 `json:"ontology,omitempty"` // axis -> weight, sums to 1 or empty
	Features  map[string]float64 `json:"features,omitempty"`
	Embedding *Embedding         `json:"embedding,omitempty"`

	text string
}

// Text returns the transient sentence text. Empty once extraction completes.
func (s *Sentence) Text() string { return s.text }

// Discard drops the transient text. Called by the pipeline once scoring,
// embedding and entity extraction are done.
func (s *Sentence) Discard() { s.text = "" }

// Segment is a paragraph-equivalent sub-division of a Work.
type Segment struct {
	ID           string      `json:"id"`
	Order        int         `json:"order"`
	TimeCodeMS   int64       `json:"time_code_ms"`
	KeyTerms     []string    `json:"key_terms,omitempty"`
	DominantAxis string      `json:"dominant_axis,omitempty"`
	LengthHint   int         `json:"length_hint"` // rune count, not content
	Sentences    []*Sentence `json:"sentences"`
}

// Mention records that a sentence mentions an entity, with a weight derived
// from the sentence's ontology distribution.
type Mention struct {
	SentenceID string  `json:"sentence_id"`
	Weight     float64 `json:"weight"`
}

// Entity is an abstracted mention shared across the sentences of one Work.
// It carries derived labels and scores only, never verbatim source spans
// beyond the normalized key term itself.
type Entity struct {
	ID        string             `json:"id"`
	Type      EntityType         `json:"type"`
	Labels    []string           `json:"labels"`
	NormLabel string             `json:"norm_label"`
	Ontology  map[string]float64 `json:"ontology,omitempty"`
	Embedding *Embedding         `json:"embedding,omitempty"`
	Mentions  []Mention          `json:"mentions"`
}

// Candidate is one ranked (category, score) pair from a classification
// source. Scores are source-scaled and not comparable across sources until
// the consensus engine normalizes them.
type Candidate struct {
	Code  string  `json:"code"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SourceResult is the ranked output of one classification source.
type SourceResult struct {
	Source     string      `json:"source"` // "subject", "genre" or "ontology"
	Candidates []Candidate `json:"candidates"`
}

// Classification statuses.
const (
	StatusAgreed    = "agreed"
	StatusUncertain = "uncertain"
	StatusNone      = "none"
)

// ClassificationResult is the per-Work consensus record. Derived once, never
// mutated afterwards.
type ClassificationResult struct {
	Status      string         `json:"status"`
	Consensus   []Candidate    `json:"consensus,omitempty"`
	Confidence  float64        `json:"confidence"`
	Agreement   float64        `json:"agreement"`             // mean pairwise top-3 overlap
	Correlation *float64       `json:"correlation,omitempty"` // Pearson, when computable
	Sources     []SourceResult `json:"sources"`
}

// Work is the root representation of one ingested document. Immutable after
// extraction completes.
type Work struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	SourceType     string                `json:"source_type"`
	IngestedAt     time.Time             `json:"ingested_at"`
	Fingerprint    string                `json:"fingerprint"` // hex SHA-256, dedup only
	Ontology       map[string]float64    `json:"ontology,omitempty"`
	Strategy       AggregationStrategy   `json:"strategy"`
	EmbeddingDim   int                   `json:"embedding_dim"`
	TokenHint      int                   `json:"token_hint,omitempty"`
	Segments       []*Segment            `json:"segments"`
	Entities       []*Entity             `json:"entities"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

// Node is one vertex of the emitted property graph.
type Node struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Edge is one typed relationship of the emitted property graph.
type Edge struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Weight     float64                `json:"weight"`
}

// Header carries the audit/reproducibility block both artifacts embed.
type Header struct {
	Fingerprint string    `json:"fingerprint"`
	SeedState   string    `json:"seed_state"`
	Confidence  float64   `json:"confidence"`
	Strategy    string    `json:"strategy"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GraphData is the full property graph handed to the serializers.
type GraphData struct {
	Header Header `json:"header"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// Node type tags used in the emitted graph.
const (
	NodeWork     = "Work"
	NodeSegment  = "Segment"
	NodeSentence = "Sentence"
	NodeEntity   = "Entity"
	NodeCategory = "Category"
)

// Edge type tags used in the emitted graph.
const (
	EdgeHasSegment   = "HAS_SEGMENT"
	EdgeHasSentence  = "HAS_SENTENCE"
	EdgeMentions     = "MENTIONS"
	EdgeClassifiedAs = "CLASSIFIED_AS"
)
