// Package catalog holds the closed configuration tables the extraction
// engine scores against: the ontology axis catalog, the hierarchical
// subject taxonomy and the flat genre taxonomy. Catalogs are explicit
// values passed to components at construction time so versions can run
// side by side.
package catalog

// Axis is one named semantic dimension with its trigger patterns and boost
// coefficient. Catalog declaration order is significant: ties between axes
// are broken by position, not alphabetically.
type Axis struct {
	Name     string
	Patterns []string // regex sources, Latin and CJK
	Boost    float64
}

// Canonical axis names.
const (
	AxisTemporal     = "temporal"
	AxisSpatial      = "spatial"
	AxisEmotion      = "emotion"
	AxisRelationship = "relationship"
	AxisCausality    = "causality"
	AxisNarrative    = "narrative"
	AxisSensory      = "sensory"
	AxisAbstraction  = "abstraction"
)

// DefaultAxes returns the default ordered axis catalog.
func DefaultAxes() []Axis {
	return []Axis{
		{
			Name: AxisTemporal,
			Patterns: []string{
				`(?i)\b(yesterday|today|tomorrow|morning|evening|night|year|month|week|hour|minute|moment|when|while|before|after|soon|already|never|always)\b`,
				`(昨日|今日|明日|今朝|朝|夜|昼|春|夏|秋|冬|時|頃|前|後|やがて|いつ|まだ|もう)`,
				`\b\d{1,4}(年|月|日)|\b\d{1,2}:\d{2}\b`,
			},
			Boost: 1.2,
		},
		{
			Name: AxisSpatial,
			Patterns: []string{
				`(?i)\b(here|there|where|above|below|inside|outside|near|far|north|south|east|west|house|room|street|city|village|mountain|river|sea)\b`,
				`(ここ|そこ|どこ|家|部屋|町|村|山|川|海|道|上|下|中|外|辺|所)`,
			},
			Boost: 1.1,
		},
		{
			Name: AxisEmotion,
			Patterns: []string{
				`(?i)\b(love|hate|fear|joy|sad|sorrow|anger|happy|lonely|tears|laugh|cry|smile|despair|hope)\b`,
				`(嬉し|悲し|怒|恐|寂し|涙|笑|泣|愛|憎|切な|嘆)`,
			},
			Boost: 1.4,
		},
		{
			Name: AxisRelationship,
			Patterns: []string{
				`(?i)\b(mother|father|sister|brother|friend|teacher|master|wife|husband|child|family|neighbor|lover)\b`,
				`(母|父|姉|妹|兄|弟|友|先生|主人|妻|夫|子供|家族|隣人)`,
			},
			Boost: 1.2,
		},
		{
			Name: AxisCausality,
			Patterns: []string{
				`(?i)\b(because|therefore|thus|hence|since|so that|consequently|as a result|caused)\b`,
				`(ので|から|ため|ゆえ|従って|だから|すると|よって)`,
			},
			Boost: 1.3,
		},
		{
			Name: AxisNarrative,
			Patterns: []string{
				`(?i)\b(once|story|tale|said|told|narrat|chapter|began|ended|happened)\b`,
				`(である|であった|だった|という|物語|話|語|章|始|終)`,
			},
			Boost: 1.0,
		},
		{
			Name: AxisSensory,
			Patterns: []string{
				`(?i)\b(saw|heard|sound|voice|color|light|dark|smell|taste|touch|cold|warm|bright)\b`,
				`(見|聞|音|声|色|光|闇|匂|味|触|寒|暖|明)`,
			},
			Boost: 1.1,
		},
		{
			Name: AxisAbstraction,
			Patterns: []string{
				`(?i)\b(idea|thought|concept|truth|meaning|soul|spirit|mind|reason|philosophy|existence)\b`,
				`(考え|思想|概念|真理|意味|魂|精神|心|理|哲学|存在|人間)`,
			},
			Boost: 1.0,
		},
	}
}

// Features is the abstracted feature bundle handed to the taxonomy
// classifiers. It never contains source text, only derived key terms and
// scalars.
type Features struct {
	KeyTerms      map[string]float64 // normalized term -> weight
	Ontology      map[string]float64 // work-level axis weights
	TokenCount    int
	SentenceCount int
}

// Candidate is one ranked (code, score) pair returned by a catalog
// classifier. Scores are catalog-scaled and not comparable across catalogs.
type Candidate struct {
	Code  string
	Label string
	Score float64
}
