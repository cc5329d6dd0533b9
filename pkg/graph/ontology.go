package graph

import (
	"regexp"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

var sentencesScored = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ontology_sentences_scored_total",
		Help: "Number of sentences scored against the axis catalog",
	},
	[]string{"outcome"}, // "hit" or "fallback"
)

func init() {
	prometheus.MustRegister(sentencesScored)
}

// OntologyScorer computes normalized weight distributions over the axis
// catalog. One scorer instance is safe for concurrent use; it holds only
// compiled patterns.
type OntologyScorer struct {
	axes     []catalog.Axis
	compiled [][]*regexp.Regexp
	logger   *logrus.Logger
}

// NewOntologyScorer compiles the axis catalog. Axis order is preserved: it
// is the deterministic tie-break order.
func NewOntologyScorer(axes []catalog.Axis) (*OntologyScorer, error) {
	if len(axes) == 0 {
		return nil, errors.New("axis catalog is empty")
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	compiled := make([][]*regexp.Regexp, len(axes))
	for i, axis := range axes {
		if axis.Boost <= 0 {
			return nil, errors.Errorf("axis %q has non-positive boost %v", axis.Name, axis.Boost)
		}
		for _, pat := range axis.Patterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, errors.Wrapf(err, "axis %q pattern %q", axis.Name, pat)
			}
			compiled[i] = append(compiled[i], re)
		}
	}
	return &OntologyScorer{axes: axes, compiled: compiled, logger: logger}, nil
}

// Axes returns the catalog in declaration order.
func (s *OntologyScorer) Axes() []catalog.Axis { return s.axes }

// Score computes the normalized axis distribution for one text. When no
// pattern hits at all, a minimal uniform distribution is returned so
// downstream consumers never divide by zero.
func (s *OntologyScorer) Score(text string) map[string]float64 {
	raw := make([]float64, len(s.axes))
	total := 0.0
	for i := range s.axes {
		hits := 0
		for _, re := range s.compiled[i] {
			hits += len(re.FindAllStringIndex(text, -1))
		}
		raw[i] = float64(hits) * s.axes[i].Boost
		total += raw[i]
	}

	weights := make(map[string]float64, len(s.axes))
	if total == 0 {
		uniform := 1.0 / float64(len(s.axes))
		for i := range s.axes {
			weights[s.axes[i].Name] = uniform
		}
		sentencesScored.WithLabelValues("fallback").Inc()
		return weights
	}
	for i := range s.axes {
		weights[s.axes[i].Name] = raw[i] / total
	}
	sentencesScored.WithLabelValues("hit").Inc()
	return weights
}

// DominantAxis picks the highest-weighted axis, breaking ties by catalog
// declaration order.
func (s *OntologyScorer) DominantAxis(weights map[string]float64) string {
	best := ""
	bestW := -1.0
	for _, axis := range s.axes {
		if w := weights[axis.Name]; w > bestW {
			best = axis.Name
			bestW = w
		}
	}
	return best
}

// Aggregate rolls sentence-level distributions up to the Work level using
// the given strategy. fullText is only consulted for document_level.
func (s *OntologyScorer) Aggregate(segments []*Segment, fullText string, strategy AggregationStrategy) (map[string]float64, error) {
	switch strategy {
	case AggregateDocumentLevel:
		return s.Score(fullText), nil
	case AggregateSentenceMean:
		vectors := make([]map[string]float64, 0)
		for _, seg := range segments {
			for _, sent := range seg.Sentences {
				if len(sent.Ontology) > 0 {
					vectors = append(vectors, sent.Ontology)
				}
			}
		}
		return s.meanVector(vectors), nil
	case AggregateSegmentMean:
		segMeans := make([]map[string]float64, 0, len(segments))
		for _, seg := range segments {
			vectors := make([]map[string]float64, 0, len(seg.Sentences))
			for _, sent := range seg.Sentences {
				if len(sent.Ontology) > 0 {
					vectors = append(vectors, sent.Ontology)
				}
			}
			if len(vectors) > 0 {
				segMeans = append(segMeans, s.meanVector(vectors))
			}
		}
		return s.meanVector(segMeans), nil
	default:
		return nil, errors.Errorf("unknown aggregation strategy %q", strategy)
	}
}

// meanVector averages distributions axis-wise and renormalizes so the
// result sums to 1 within tolerance.
func (s *OntologyScorer) meanVector(vectors []map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(s.axes))
	if len(vectors) == 0 {
		uniform := 1.0 / float64(len(s.axes))
		for _, axis := range s.axes {
			out[axis.Name] = uniform
		}
		return out
	}
	for _, v := range vectors {
		for _, axis := range s.axes {
			out[axis.Name] += v[axis.Name]
		}
	}
	total := 0.0
	for _, axis := range s.axes {
		out[axis.Name] /= float64(len(vectors))
		total += out[axis.Name]
	}
	if total > 0 {
		for _, axis := range s.axes {
			out[axis.Name] /= total
		}
	}
	return out
}
