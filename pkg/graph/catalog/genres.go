package catalog

// Genre is one entry of the flat genre taxonomy.
type Genre struct {
	Code     string
	Label    string
	Triggers []string
	AxisBias map[string]float64
}

// GenreCatalog is a closed flat lookup table exposing
// Classify(features) -> ranked candidates.
type GenreCatalog struct {
	genres []Genre
	index  map[string]*Genre
}

// NewGenreCatalog builds a catalog from explicit genres.
func NewGenreCatalog(genres []Genre) *GenreCatalog {
	c := &GenreCatalog{genres: genres, index: make(map[string]*Genre, len(genres))}
	for i := range c.genres {
		c.index[c.genres[i].Code] = &c.genres[i]
	}
	return c
}

// DefaultGenreCatalog returns the default flat genre table.
func DefaultGenreCatalog() *GenreCatalog {
	return NewGenreCatalog([]Genre{
		{Code: "novel", Label: "novel", Triggers: []string{
			"story", "novel", "chapter", "narrator",
			"物語", "小説", "である", "吾輩", "猫",
		}, AxisBias: map[string]float64{AxisNarrative: 1.0, AxisRelationship: 0.5}},
		{Code: "poetry", Label: "poetry", Triggers: []string{
			"poem", "verse", "haiku",
			"詩", "歌", "俳句",
		}, AxisBias: map[string]float64{AxisEmotion: 1.0, AxisSensory: 0.8}},
		{Code: "essay", Label: "essay", Triggers: []string{
			"essay", "opinion", "reflection",
			"随筆", "思う",
		}, AxisBias: map[string]float64{AxisAbstraction: 1.0}},
		{Code: "drama", Label: "drama", Triggers: []string{
			"act", "scene", "stage", "dialogue",
			"幕", "舞台", "台詞",
		}, AxisBias: map[string]float64{AxisRelationship: 0.8, AxisEmotion: 0.6}},
		{Code: "news", Label: "news", Triggers: []string{
			"reported", "according", "announced", "official",
			"報道", "発表", "当局",
		}, AxisBias: map[string]float64{AxisTemporal: 0.8, AxisCausality: 0.5}},
		{Code: "technical", Label: "technical", Triggers: []string{
			"system", "method", "data", "procedure", "figure",
			"方法", "装置", "手順",
		}, AxisBias: map[string]float64{AxisCausality: 0.9, AxisAbstraction: 0.5}},
		{Code: "letter", Label: "letter", Triggers: []string{
			"dear", "sincerely", "regards",
			"拝啓", "敬具",
		}, AxisBias: map[string]float64{AxisRelationship: 1.0}},
	})
}

// Label returns the display label for a code, or the code itself when
// unknown.
func (c *GenreCatalog) Label(code string) string {
	if g, ok := c.index[code]; ok {
		return g.Label
	}
	return code
}

// Classify scores every genre against the feature bundle and returns a
// ranked candidate list.
func (c *GenreCatalog) Classify(f Features) []Candidate {
	scores := make(map[string]float64, len(c.genres))
	for _, g := range c.genres {
		s := 0.0
		for _, trig := range g.Triggers {
			if w, ok := f.KeyTerms[trig]; ok {
				s += w
			}
		}
		for axis, bias := range g.AxisBias {
			s += f.Ontology[axis] * bias
		}
		if s > 0 {
			scores[g.Code] = s
		}
	}
	return rankCandidates(scores, c.Label)
}

// AxisCategoryMap maps each ontology axis to the categories it votes for
// when the consensus engine derives its third classification source from
// the work-level ontology distribution. Values pair a category code with a
// vote weight; subject codes and genre codes share the namespace here
// because the derived source ranks across both.
var AxisCategoryMap = map[string][]Candidate{
	AxisNarrative:    {{Code: "913", Score: 1.0}, {Code: "900", Score: 0.8}, {Code: "novel", Score: 1.0}},
	AxisEmotion:      {{Code: "911", Score: 0.7}, {Code: "900", Score: 0.5}, {Code: "poetry", Score: 0.7}, {Code: "novel", Score: 0.4}},
	AxisRelationship: {{Code: "913", Score: 0.5}, {Code: "novel", Score: 0.5}, {Code: "drama", Score: 0.4}},
	AxisSensory:      {{Code: "911", Score: 0.6}, {Code: "poetry", Score: 0.6}},
	AxisTemporal:     {{Code: "200", Score: 0.6}, {Code: "news", Score: 0.5}},
	AxisSpatial:      {{Code: "200", Score: 0.3}, {Code: "913", Score: 0.3}, {Code: "novel", Score: 0.3}},
	AxisCausality:    {{Code: "400", Score: 0.6}, {Code: "technical", Score: 0.6}},
	AxisAbstraction:  {{Code: "100", Score: 0.8}, {Code: "914", Score: 0.5}, {Code: "essay", Score: 0.6}},
}
