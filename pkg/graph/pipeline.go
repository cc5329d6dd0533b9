package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/embedding"
	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

var (
	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_extraction_duration_seconds",
			Help: "Time spent extracting one work",
		},
		[]string{"status"},
	)

	worksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_works_processed_total",
			Help: "Total number of works processed",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(extractionDuration)
	prometheus.MustRegister(worksProcessed)
}

// Config assembles the full extraction configuration. Catalogs are explicit
// values so multiple versions can run side by side.
type Config struct {
	Segmenter SegmenterConfig
	Axes      []catalog.Axis
	Strategy  AggregationStrategy
	Consensus ConsensusConfig
	Subjects  *catalog.SubjectTaxonomy
	Genres    *catalog.GenreCatalog

	// Workers bounds the per-sentence scoring pool. Sentences are
	// embarrassingly parallel; results are kept in original order.
	Workers int

	// KeyTermsPerSegment caps the non-reversible key-term list.
	KeyTermsPerSegment int
}

// DefaultConfig returns a configuration with the default catalogs.
func DefaultConfig() Config {
	return Config{
		Segmenter:          DefaultSegmenterConfig(),
		Axes:               catalog.DefaultAxes(),
		Strategy:           AggregateSentenceMean,
		Consensus:          DefaultConsensusConfig(),
		Subjects:           catalog.DefaultSubjectTaxonomy(),
		Genres:             catalog.DefaultGenreCatalog(),
		Workers:            4,
		KeyTermsPerSegment: 5,
	}
}

// Pipeline runs the full extraction for one Work: segmentation, per-sentence
// ontology scoring and embedding, entity extraction, classification
// consensus and identifier assignment. Each Work is processed in total
// isolation; no cross-document state is shared.
type Pipeline struct {
	cfg       Config
	segmenter *Segmenter
	scorer    *OntologyScorer
	extractor *EntityExtractor
	consensus *ConsensusEngine
	ids       *IDGenerator
	embedder  embedding.Embedder
	logger    *logrus.Logger
}

// NewPipeline wires the pipeline. A nil embedder defaults to the
// deterministic fallback generator.
func NewPipeline(cfg Config, embedder embedding.Embedder) (*Pipeline, error) {
	def := DefaultConfig()
	if len(cfg.Axes) == 0 {
		cfg.Axes = def.Axes
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.Subjects == nil {
		cfg.Subjects = def.Subjects
	}
	if cfg.Genres == nil {
		cfg.Genres = def.Genres
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.KeyTermsPerSegment <= 0 {
		cfg.KeyTermsPerSegment = def.KeyTermsPerSegment
	}
	if embedder == nil {
		embedder = embedding.NewFallback(embedding.DefaultDim)
	}

	scorer, err := NewOntologyScorer(cfg.Axes)
	if err != nil {
		return nil, errors.Wrap(err, "compiling axis catalog")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Pipeline{
		cfg:       cfg,
		segmenter: NewSegmenter(cfg.Segmenter),
		scorer:    scorer,
		extractor: NewEntityExtractor(),
		consensus: NewConsensusEngine(cfg.Consensus, cfg.Subjects, cfg.Genres),
		ids:       NewIDGenerator(),
		embedder:  embedder,
		logger:    logger,
	}, nil
}

// IDs exposes the run's identifier generator, whose seed state goes into
// artifact headers and failure reports.
func (p *Pipeline) IDs() *IDGenerator { return p.ids }

// Extract processes one document. The returned RunContext carries the entity
// table and per-sentence warnings; it must be discarded after serialization.
// The raw text is gone from the Work by the time Extract returns.
func (p *Pipeline) Extract(ctx context.Context, title, text, sourceType string, tokenHint int) (*Work, *RunContext, error) {
	timer := prometheus.NewTimer(extractionDuration.WithLabelValues("extract"))
	defer timer.ObserveDuration()

	segments, err := p.segmenter.Segment(text)
	if err != nil {
		worksProcessed.WithLabelValues("error").Inc()
		return nil, nil, errors.Wrapf(err, "segmenting %q (%s)", title, p.ids.SeedState())
	}

	sum := sha256.Sum256([]byte(text))
	work := &Work{
		ID:           p.ids.Next(text, subtagWork()),
		Title:        title,
		SourceType:   sourceType,
		IngestedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Fingerprint:  hex.EncodeToString(sum[:]),
		Strategy:     p.cfg.Strategy,
		EmbeddingDim: p.embedder.Dimensions(),
		TokenHint:    tokenHint,
		Segments:     segments,
	}
	if work.TokenHint == 0 {
		work.TokenHint = approximateTokens(text)
	}

	// IDs are assigned in creation order so the serializer sees them ready.
	for _, seg := range segments {
		seg.ID = p.ids.Next(segmentContent(seg), subtagSegment(seg.Order))
		for _, sent := range seg.Sentences {
			sent.ID = p.ids.Next(sent.text, subtagSentence(seg.Order, sent.Order))
		}
	}

	langHint := detectLanguageHint(text)
	p.scoreSentences(ctx, segments, langHint)

	run := NewRunContext()
	var prev *Sentence
	for _, seg := range segments {
		for _, sent := range seg.Sentences {
			if err := p.extractor.Extract(run, prev, sent); err != nil {
				run.Warn(fmt.Sprintf("sentence %s: %v", sent.ID, err))
			}
			prev = sent
		}
	}

	for _, seg := range segments {
		p.annotateSegment(seg)
	}

	work.Ontology, err = p.scorer.Aggregate(segments, text, p.cfg.Strategy)
	if err != nil {
		worksProcessed.WithLabelValues("error").Inc()
		return nil, nil, errors.Wrapf(err, "aggregating ontology (%s)", p.ids.SeedState())
	}

	features := catalog.Features{
		KeyTerms:      p.globalKeyTerms(segments),
		Ontology:      work.Ontology,
		TokenCount:    work.TokenHint,
		SentenceCount: countSentences(segments),
	}
	work.Classification = p.consensus.Classify(features)

	work.Entities = p.finalizeEntities(ctx, run, langHint)

	// Privacy contract: no verbatim text survives extraction.
	for _, seg := range segments {
		for _, sent := range seg.Sentences {
			sent.Discard()
		}
	}

	p.logger.WithFields(logrus.Fields{
		"work_id":  work.ID,
		"segments": len(segments),
		"entities": len(work.Entities),
		"status":   work.Classification.Status,
		"warnings": len(run.Warnings()),
	}).Info("extraction completed")
	worksProcessed.WithLabelValues("success").Inc()

	return work, run, nil
}

// scoreSentences fans sentence scoring and embedding out over the worker
// pool. Each worker writes only to its own sentence, so no locking is
// needed; slice order preserves the original sentence order for the
// aggregation that follows.
func (p *Pipeline) scoreSentences(ctx context.Context, segments []*Segment, langHint string) {
	flat := make([]*Sentence, 0)
	for _, seg := range segments {
		flat = append(flat, seg.Sentences...)
	}

	jobs := make(chan *Sentence)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sent := range jobs {
				sent.Ontology = p.scorer.Score(sent.text)
				sent.Features = map[string]float64{
					"rune_count": float64(utf8.RuneCountInString(sent.text)),
					"term_count": float64(len(tokenizeTerms(sent.text))),
				}
				vec, prov, err := p.embedder.Embed(ctx, sent.text, langHint)
				if err != nil {
					// The embedder contract recovers internally; an error
					// here means even the fallback failed, which only a
					// cancelled context produces.
					continue
				}
				sent.Embedding = &Embedding{Vector: vec, Dim: len(vec), Provenance: string(prov)}
			}
		}()
	}
	for _, sent := range flat {
		jobs <- sent
	}
	close(jobs)
	wg.Wait()
}

// annotateSegment fills the derived, non-reversible segment attributes.
func (p *Pipeline) annotateSegment(seg *Segment) {
	freq := make(map[string]int)
	vectors := make([]map[string]float64, 0, len(seg.Sentences))
	for _, sent := range seg.Sentences {
		for _, term := range tokenizeTerms(sent.text) {
			freq[term]++
		}
		if len(sent.Ontology) > 0 {
			vectors = append(vectors, sent.Ontology)
		}
	}
	seg.KeyTerms = topTerms(freq, p.cfg.KeyTermsPerSegment)
	seg.DominantAxis = p.scorer.DominantAxis(p.scorer.meanVector(vectors))
}

// globalKeyTerms builds the work-level term weight map for the taxonomy
// classifiers, normalized against the most frequent term.
func (p *Pipeline) globalKeyTerms(segments []*Segment) map[string]float64 {
	freq := make(map[string]int)
	for _, seg := range segments {
		for _, sent := range seg.Sentences {
			for _, term := range tokenizeTerms(sent.text) {
				freq[term]++
			}
		}
	}
	maxFreq := 0
	for _, n := range freq {
		if n > maxFreq {
			maxFreq = n
		}
	}
	out := make(map[string]float64, len(freq))
	for term, n := range freq {
		out[term] = float64(n) / float64(maxFreq)
	}
	return out
}

// finalizeEntities assigns entity identifiers and embeddings in
// first-appearance order.
func (p *Pipeline) finalizeEntities(ctx context.Context, run *RunContext, langHint string) []*Entity {
	entities := run.Entities()
	for _, ent := range entities {
		ent.ID = p.ids.Next(ent.NormLabel, subtagEntity())
		vec, prov, err := p.embedder.Embed(ctx, ent.NormLabel, langHint)
		if err != nil {
			continue
		}
		ent.Embedding = &Embedding{Vector: vec, Dim: len(vec), Provenance: string(prov)}
	}
	return entities
}

var termRe = regexp.MustCompile(`[a-zA-Z]{3,}|[\p{Han}々]+|[\p{Katakana}ー]{2,}|(である|であった|だった)`)

// tokenizeTerms yields lowercase derived terms: Latin words, Han and
// Katakana runs, plus the literary copula forms the taxonomies key on.
func tokenizeTerms(text string) []string {
	out := make([]string, 0, 8)
	for _, m := range termRe.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if defaultTermStopWords[m] {
			continue
		}
		out = append(out, m)
	}
	return out
}

var defaultTermStopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"was": true, "were": true, "are": true, "this": true, "that": true,
	"have": true, "has": true, "had": true, "not": true, "you": true,
}

// topTerms picks the n highest-frequency terms, ties broken alphabetically
// for determinism.
func topTerms(freq map[string]int, n int) []string {
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func countSentences(segments []*Segment) int {
	n := 0
	for _, seg := range segments {
		n += len(seg.Sentences)
	}
	return n
}

func segmentContent(seg *Segment) string {
	parts := make([]string, 0, len(seg.Sentences))
	for _, sent := range seg.Sentences {
		parts = append(parts, sent.text)
	}
	return strings.Join(parts, " ")
}

// detectLanguageHint distinguishes CJK-dominant text from Latin text for
// the embedding capability.
func detectLanguageHint(text string) string {
	cjk, letters := 0, 0
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			cjk++
			letters++
		} else if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters > 0 && float64(cjk)/float64(letters) > 0.3 {
		return "ja"
	}
	return "en"
}

// approximateTokens is the whitespace/CJK token fallback used when no
// ingest processor supplied a count.
func approximateTokens(text string) int {
	n := len(strings.Fields(text))
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			n++
		}
	}
	return n
}
