package catalog

import (
	"sort"
)

// SubjectNode is one entry of the hierarchical subject taxonomy, decimal
// classification style: single-digit main classes with three-digit
// divisions underneath.
type SubjectNode struct {
	Code     string
	Label    string
	Parent   string   // empty for main classes
	Triggers []string // key terms that vote for this code
	AxisBias map[string]float64
}

// SubjectTaxonomy is a closed hierarchical lookup table exposing
// Classify(features) -> ranked candidates. Internal logic is opaque to the
// engine.
type SubjectTaxonomy struct {
	nodes []SubjectNode
	index map[string]*SubjectNode
}

// NewSubjectTaxonomy builds a taxonomy from explicit nodes.
func NewSubjectTaxonomy(nodes []SubjectNode) *SubjectTaxonomy {
	t := &SubjectTaxonomy{nodes: nodes, index: make(map[string]*SubjectNode, len(nodes))}
	for i := range t.nodes {
		t.index[t.nodes[i].Code] = &t.nodes[i]
	}
	return t
}

// DefaultSubjectTaxonomy returns the literature-biased default subject
// table.
func DefaultSubjectTaxonomy() *SubjectTaxonomy {
	return NewSubjectTaxonomy([]SubjectNode{
		{Code: "100", Label: "philosophy", Triggers: []string{
			"truth", "reason", "mind", "philosophy", "existence", "ethics",
			"真理", "哲学", "存在", "精神", "人間",
		}, AxisBias: map[string]float64{AxisAbstraction: 1.0}},
		{Code: "200", Label: "history", Triggers: []string{
			"history", "war", "empire", "century", "era", "dynasty",
			"歴史", "戦争", "時代", "明治", "江戸",
		}, AxisBias: map[string]float64{AxisTemporal: 0.8}},
		{Code: "400", Label: "natural science", Triggers: []string{
			"experiment", "theory", "species", "cell", "physics", "chemistry",
			"実験", "理論", "科学", "物理", "化学",
		}, AxisBias: map[string]float64{AxisCausality: 0.6}},
		{Code: "900", Label: "literature", Triggers: []string{
			"story", "tale", "novel", "poem", "verse",
			"物語", "小説", "詩", "歌", "文学",
		}, AxisBias: map[string]float64{AxisNarrative: 1.0, AxisEmotion: 0.6}},
		{Code: "911", Label: "poetry", Parent: "900", Triggers: []string{
			"poem", "verse", "haiku", "stanza",
			"詩", "歌", "俳句", "短歌",
		}, AxisBias: map[string]float64{AxisEmotion: 0.9, AxisSensory: 0.7}},
		{Code: "913", Label: "japanese fiction", Parent: "900", Triggers: []string{
			"novel", "chapter", "narrator",
			"である", "であった", "吾輩", "物語", "小説", "猫",
		}, AxisBias: map[string]float64{AxisNarrative: 1.0, AxisRelationship: 0.5}},
		{Code: "914", Label: "essays", Parent: "900", Triggers: []string{
			"essay", "reflection", "musing",
			"随筆", "思う", "考え",
		}, AxisBias: map[string]float64{AxisAbstraction: 0.8}},
	})
}

// Family reports whether code is descended from (or equal to) ancestor.
func (t *SubjectTaxonomy) Family(code, ancestor string) bool {
	for code != "" {
		if code == ancestor {
			return true
		}
		node, ok := t.index[code]
		if !ok {
			return false
		}
		code = node.Parent
	}
	return false
}

// Label returns the display label for a code, or the code itself when
// unknown.
func (t *SubjectTaxonomy) Label(code string) string {
	if n, ok := t.index[code]; ok {
		return n.Label
	}
	return code
}

// Classify scores every node against the feature bundle and returns a
// ranked candidate list. A trigger hit on a child also feeds half its
// weight to the parent, keeping the hierarchy coherent.
func (t *SubjectTaxonomy) Classify(f Features) []Candidate {
	scores := make(map[string]float64, len(t.nodes))
	for _, node := range t.nodes {
		s := 0.0
		for _, trig := range node.Triggers {
			if w, ok := f.KeyTerms[trig]; ok {
				s += w
			}
		}
		for axis, bias := range node.AxisBias {
			s += f.Ontology[axis] * bias
		}
		if s > 0 {
			scores[node.Code] += s
			if node.Parent != "" {
				scores[node.Parent] += s / 2
			}
		}
	}
	return rankCandidates(scores, t.Label)
}

// rankCandidates sorts scored codes descending, breaking score ties by code
// so ranking stays deterministic.
func rankCandidates(scores map[string]float64, label func(string) string) []Candidate {
	out := make([]Candidate, 0, len(scores))
	for code, s := range scores {
		out = append(out, Candidate{Code: code, Label: label(code), Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Code < out[j].Code
	})
	return out
}
