package graph

import (
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

var consensusResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consensus_results_total",
		Help: "Classification consensus outcomes",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(consensusResults)
}

// Source names.
const (
	SourceSubject  = "subject"
	SourceGenre    = "genre"
	SourceOntology = "ontology"
)

// ConsensusConfig carries the agreement thresholds and per-source weights.
type ConsensusConfig struct {
	OverlapThreshold     float64 // top-3 overlap, default 0.66
	CorrelationThreshold float64 // Pearson over shared top-5, default 0.7
	UncertainPenalty     float64 // confidence scale-down when uncertain
	SourceWeights        map[string]float64
}

// DefaultConsensusConfig returns the default thresholds.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		OverlapThreshold:     0.66,
		CorrelationThreshold: 0.7,
		UncertainPenalty:     0.5,
		SourceWeights: map[string]float64{
			SourceSubject:  0.4,
			SourceGenre:    0.3,
			SourceOntology: 0.3,
		},
	}
}

// ConsensusEngine reconciles three independent classification sources into
// one consensus category set: the hierarchical subject taxonomy, the flat
// genre taxonomy and a derivation from the ontology distribution.
type ConsensusEngine struct {
	cfg      ConsensusConfig
	subjects *catalog.SubjectTaxonomy
	genres   *catalog.GenreCatalog
	axisMap  map[string][]catalog.Candidate
	logger   *logrus.Logger
}

// NewConsensusEngine wires the engine to explicit catalogs.
func NewConsensusEngine(cfg ConsensusConfig, subjects *catalog.SubjectTaxonomy, genres *catalog.GenreCatalog) *ConsensusEngine {
	def := DefaultConsensusConfig()
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = def.OverlapThreshold
	}
	if cfg.CorrelationThreshold <= 0 {
		cfg.CorrelationThreshold = def.CorrelationThreshold
	}
	if cfg.UncertainPenalty <= 0 {
		cfg.UncertainPenalty = def.UncertainPenalty
	}
	if len(cfg.SourceWeights) == 0 {
		cfg.SourceWeights = def.SourceWeights
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &ConsensusEngine{
		cfg:      cfg,
		subjects: subjects,
		genres:   genres,
		axisMap:  catalog.AxisCategoryMap,
		logger:   logger,
	}
}

// Classify runs all three sources over the feature bundle and reconciles
// them. If two of three sources return empty candidate lists, or no source
// pair overlaps at all, the engine returns a no-classification result with
// confidence 0 rather than guessing.
func (e *ConsensusEngine) Classify(f catalog.Features) *ClassificationResult {
	sources := []SourceResult{
		{Source: SourceSubject, Candidates: toCandidates(e.subjects.Classify(f))},
		{Source: SourceGenre, Candidates: toCandidates(e.genres.Classify(f))},
		{Source: SourceOntology, Candidates: e.deriveFromOntology(f.Ontology)},
	}

	empty := 0
	for _, src := range sources {
		if len(src.Candidates) == 0 {
			empty++
		}
	}
	if empty >= 2 {
		consensusResults.WithLabelValues(StatusNone).Inc()
		return &ClassificationResult{Status: StatusNone, Confidence: 0, Sources: sources}
	}

	pa := e.analyzePairs(sources)

	if pa.pairs > 0 && pa.overlapMax == 0 {
		// Complete disagreement: never fabricate a consensus.
		consensusResults.WithLabelValues(StatusNone).Inc()
		return &ClassificationResult{Status: StatusNone, Confidence: 0, Agreement: 0, Sources: sources}
	}

	status := StatusUncertain
	voters := sources
	if pa.agreed {
		status = StatusAgreed
		voters = make([]SourceResult, 0, len(sources))
		for _, src := range sources {
			if pa.agreedSet.Contains(src.Source) {
				voters = append(voters, src)
			}
		}
	}

	consensus := e.rankByNormalizedRanks(voters)
	confidence := e.confidence(sources, status)

	agreement := 0.0
	if pa.pairs > 0 {
		agreement = pa.overlapSum / float64(pa.pairs)
	}

	e.logger.WithFields(logrus.Fields{
		"status":     status,
		"agreement":  agreement,
		"confidence": confidence,
	}).Debug("classification consensus computed")
	consensusResults.WithLabelValues(status).Inc()

	return &ClassificationResult{
		Status:      status,
		Consensus:   consensus,
		Confidence:  confidence,
		Agreement:   agreement,
		Correlation: pa.corr,
		Sources:     sources,
	}
}

// pairAnalysis accumulates the pairwise agreement evidence.
type pairAnalysis struct {
	overlapSum float64
	overlapMax float64
	pairs      int
	agreedSet  mapset.Set[string]
	corr       *float64
	agreed     bool
}

// analyzePairs runs the pairwise overlap and correlation checks over every
// non-empty source pair. The reported correlation is the strongest
// computable Pearson pair; each pair still agrees or not on its own value.
func (e *ConsensusEngine) analyzePairs(sources []SourceResult) pairAnalysis {
	pa := pairAnalysis{agreedSet: mapset.NewSet[string]()}
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			a, b := sources[i], sources[j]
			if len(a.Candidates) == 0 || len(b.Candidates) == 0 {
				continue
			}
			overlap := topOverlap(a.Candidates, b.Candidates, 3)
			pa.overlapSum += overlap
			if overlap > pa.overlapMax {
				pa.overlapMax = overlap
			}
			pa.pairs++

			pairAgreed := overlap >= e.cfg.OverlapThreshold
			// Pearson only where a comparable weight vector exists: the
			// ontology-derived source against a taxonomy source.
			if a.Source == SourceOntology || b.Source == SourceOntology {
				if r, ok := pearsonTop5(a.Candidates, b.Candidates); ok {
					if pa.corr == nil || r > *pa.corr {
						v := r
						pa.corr = &v
					}
					pairAgreed = pairAgreed && r >= e.cfg.CorrelationThreshold
				}
			}
			if pairAgreed {
				pa.agreed = true
				pa.agreedSet.Add(a.Source)
				pa.agreedSet.Add(b.Source)
			}
		}
	}
	return pa
}

// deriveFromOntology turns the work-level axis distribution into a ranked
// category list through the axis-category vote map.
func (e *ConsensusEngine) deriveFromOntology(weights map[string]float64) []Candidate {
	scores := make(map[string]float64)
	for axis, w := range weights {
		for _, vote := range e.axisMap[axis] {
			scores[vote.Code] += w * vote.Score
		}
	}
	out := make([]Candidate, 0, len(scores))
	for code, s := range scores {
		out = append(out, Candidate{Code: code, Label: e.labelFor(code), Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (e *ConsensusEngine) labelFor(code string) string {
	if l := e.subjects.Label(code); l != code {
		return l
	}
	return e.genres.Label(code)
}

// rankByNormalizedRanks sums per-source normalized ranks across voters and
// returns the merged ranked list. Ties are broken by the hierarchical
// subject source's own preference, then by code.
func (e *ConsensusEngine) rankByNormalizedRanks(voters []SourceResult) []Candidate {
	sums := make(map[string]float64)
	subjectRank := make(map[string]int)
	for _, src := range voters {
		n := len(src.Candidates)
		for idx, c := range src.Candidates {
			sums[c.Code] += float64(n-idx) / float64(n)
			if src.Source == SourceSubject {
				subjectRank[c.Code] = idx
			}
		}
	}
	out := make([]Candidate, 0, len(sums))
	for code, s := range sums {
		out = append(out, Candidate{Code: code, Label: e.labelFor(code), Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, iOK := subjectRank[out[i].Code]
		rj, jOK := subjectRank[out[j].Code]
		if iOK && jOK && ri != rj {
			return ri < rj
		}
		if iOK != jOK {
			return iOK
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// confidence is the source-weighted average of min-max normalized top-1
// scores, scaled down by the penalty factor when uncertain. Per-source
// scores live on incompatible scales, so each source is normalized against
// its own candidate list first.
func (e *ConsensusEngine) confidence(sources []SourceResult, status string) float64 {
	num, den := 0.0, 0.0
	for _, src := range sources {
		if len(src.Candidates) == 0 {
			continue
		}
		w := e.cfg.SourceWeights[src.Source]
		num += w * normalizedTopScore(src.Candidates)
		den += w
	}
	if den == 0 {
		return 0
	}
	conf := num / den
	if status == StatusUncertain {
		conf *= e.cfg.UncertainPenalty
	}
	return conf
}

// normalizedTopScore min-max normalizes a source's top-1 score against its
// own candidate list. A single-candidate list normalizes to 1.
func normalizedTopScore(cands []Candidate) float64 {
	minS, maxS := cands[0].Score, cands[0].Score
	for _, c := range cands {
		if c.Score < minS {
			minS = c.Score
		}
		if c.Score > maxS {
			maxS = c.Score
		}
	}
	if maxS == minS {
		return 1
	}
	return (cands[0].Score - minS) / (maxS - minS)
}

// topOverlap computes the fraction of the smaller top-k list found in the
// other's top-k.
func topOverlap(a, b []Candidate, k int) float64 {
	setA := mapset.NewSet[string]()
	for _, c := range topK(a, k) {
		setA.Add(c.Code)
	}
	setB := mapset.NewSet[string]()
	for _, c := range topK(b, k) {
		setB.Add(c.Code)
	}
	smaller := setA.Cardinality()
	if setB.Cardinality() < smaller {
		smaller = setB.Cardinality()
	}
	if smaller == 0 {
		return 0
	}
	return float64(setA.Intersect(setB).Cardinality()) / float64(smaller)
}

// pearsonTop5 computes the Pearson correlation of the two sources' scores
// over the union of their top-5 codes. Not computable with fewer than three
// shared points or zero variance.
func pearsonTop5(a, b []Candidate) (float64, bool) {
	scoreA := make(map[string]float64)
	for _, c := range topK(a, 5) {
		scoreA[c.Code] = c.Score
	}
	scoreB := make(map[string]float64)
	for _, c := range topK(b, 5) {
		scoreB[c.Code] = c.Score
	}
	codes := mapset.NewSet[string]()
	for code := range scoreA {
		codes.Add(code)
	}
	for code := range scoreB {
		codes.Add(code)
	}
	xs := make([]float64, 0, codes.Cardinality())
	ys := make([]float64, 0, codes.Cardinality())
	for _, code := range codes.ToSlice() {
		xs = append(xs, scoreA[code])
		ys = append(ys, scoreB[code])
	}
	if len(xs) < 3 {
		return 0, false
	}
	return pearson(xs, ys)
}

func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

func topK(cands []Candidate, k int) []Candidate {
	if len(cands) < k {
		return cands
	}
	return cands[:k]
}

func toCandidates(in []catalog.Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		out = append(out, Candidate{Code: c.Code, Label: c.Label, Score: c.Score})
	}
	return out
}
