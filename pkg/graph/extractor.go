package graph

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jdkato/prose/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

var entitiesExtracted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "extractor_entities_total",
		Help: "Number of entities merged into the run table",
	},
	[]string{"entity_type"},
)

func init() {
	prometheus.MustRegister(entitiesExtracted)
}

// RunContext is the one piece of run-scoped shared state: the entity
// de-duplication table for a single Work's extraction run. It is passed by
// reference to the extractor and the graph builder and discarded after
// serialization. Single-writer discipline is enforced with a mutex.
type RunContext struct {
	mu       sync.Mutex
	byLabel  map[string]*Entity
	order    []string
	warnings []string
}

// NewRunContext creates an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{byLabel: make(map[string]*Entity)}
}

// Entities returns the de-duplicated entities in first-appearance order.
func (rc *RunContext) Entities() []*Entity {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]*Entity, 0, len(rc.order))
	for _, key := range rc.order {
		out = append(out, rc.byLabel[key])
	}
	return out
}

// Warn records a non-fatal per-sentence warning.
func (rc *RunContext) Warn(msg string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.warnings = append(rc.warnings, msg)
}

// Warnings returns recorded warnings.
func (rc *RunContext) Warnings() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.warnings...)
}

// span is one candidate mention inside a sentence.
type span struct {
	text     string
	kind     EntityType
	resolved bool // true when reached through pronoun resolution
}

// EntityExtractor pulls abstracted entities from sentences. Stateless; all
// run state lives in the RunContext.
type EntityExtractor struct {
	logger *logrus.Logger

	stopWords mapset.Set[string]
	pronouns  mapset.Set[string]
	// Archaic/literary self-reference pronouns kept as person entities
	// rather than resolved away (the narrator is a graph node).
	narrators mapset.Set[string]

	honorifics []string

	temporalRe *regexp.Regexp
	spatialRe  *regexp.Regexp
	emotionRe  *regexp.Regexp
	eventRe    *regexp.Regexp
	hanRunRe   *regexp.Regexp
	kataRunRe  *regexp.Regexp
	latinRe    *regexp.Regexp
}

// NewEntityExtractor builds an extractor with the default surface-pattern
// tables.
func NewEntityExtractor() *EntityExtractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &EntityExtractor{
		logger: logger,
		stopWords: mapset.NewSet[string](
			"the", "a", "an", "and", "or", "but", "in", "on", "at", "to",
			"for", "of", "with", "by", "is", "was", "are", "were", "be",
			"this", "that", "these", "those", "as", "it", "its",
		),
		pronouns: mapset.NewSet[string](
			"he", "she", "it", "they", "him", "her", "them",
			"his", "hers", "their", "theirs",
			"彼", "彼女", "それ", "これ", "あれ", "彼ら",
		),
		narrators: mapset.NewSet[string]("吾輩", "我輩", "私", "僕", "俺", "わたし"),
		honorifics: []string{
			"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sir", "Lady",
			"さん", "様", "君", "氏", "殿",
		},
		temporalRe: regexp.MustCompile(`(?i)\b(yesterday|today|tomorrow|morning|evening|night|spring|summer|autumn|winter)\b|(\d{1,4}年|\d{1,2}月|\d{1,2}日|昨日|今日|明日|今朝|春|夏|秋|冬)`),
		spatialRe:  regexp.MustCompile(`(?i)\b(house|room|street|city|village|mountain|river|sea|school|temple|garden)\b|(家|部屋|町|村|山|川|海|学校|寺|庭|書斎)`),
		emotionRe:  regexp.MustCompile(`(?i)\b(love|fear|joy|sorrow|anger|loneliness|despair|hope)\b|(喜び|悲しみ|怒り|恐れ|寂しさ|絶望|希望)`),
		eventRe:    regexp.MustCompile(`(?i)\b(war|wedding|funeral|festival|journey|meeting|battle)\b|(戦争|結婚|葬式|祭|旅|会合)`),
		hanRunRe:   regexp.MustCompile(`[\p{Han}々]+`),
		kataRunRe:  regexp.MustCompile(`[\p{Katakana}ー]{2,}`),
		latinRe:    regexp.MustCompile(`[A-Za-z]`),
	}
}

// Extract pulls entities from cur, resolving pronouns within the sentence
// and one sentence of look-back (prev may be nil), and merges them into the
// run table. Per-sentence failures are recorded as warnings, never fatal.
func (e *EntityExtractor) Extract(run *RunContext, prev, cur *Sentence) error {
	if cur == nil || cur.text == "" {
		return nil
	}

	spans, err := e.collectSpans(cur.text)
	if err != nil {
		run.Warn(errors.Wrapf(err, "sentence %s", cur.ID).Error())
		return nil
	}

	spans = e.resolvePronouns(spans, cur.text, prev, run)

	run.mu.Lock()
	defer run.mu.Unlock()
	for _, sp := range spans {
		label := e.stripHonorifics(sp.text)
		if label == "" {
			continue
		}
		key := NormalizeLabel(label)
		if key == "" {
			continue
		}

		ent, ok := run.byLabel[key]
		if !ok {
			ent = &Entity{
				Type:      sp.kind,
				Labels:    []string{label},
				NormLabel: key,
				Ontology:  make(map[string]float64),
			}
			run.byLabel[key] = ent
			run.order = append(run.order, key)
			entitiesExtracted.WithLabelValues(string(sp.kind)).Inc()
		} else if !containsString(ent.Labels, label) {
			ent.Labels = append(ent.Labels, label)
		}

		weight := 1.0
		if sp.resolved {
			weight = 0.5
		}
		ent.Mentions = append(ent.Mentions, Mention{SentenceID: cur.ID, Weight: weight})
		mergeOntology(ent, cur.Ontology)
	}
	return nil
}

// collectSpans gathers typed candidate spans by surface pattern. Latin text
// additionally goes through prose tokenization and NER; CJK text through
// script-run extraction.
func (e *EntityExtractor) collectSpans(text string) ([]span, error) {
	spans := make([]span, 0, 8)
	seen := mapset.NewSet[string]()
	add := func(t string, kind EntityType) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		key := NormalizeLabel(t) + "|" + string(kind)
		if seen.Contains(key) {
			return
		}
		seen.Add(key)
		spans = append(spans, span{text: t, kind: kind})
	}

	for _, m := range e.temporalRe.FindAllString(text, -1) {
		add(m, EntityTemporal)
	}
	for _, m := range e.spatialRe.FindAllString(text, -1) {
		add(m, EntityPlace)
	}
	for _, m := range e.emotionRe.FindAllString(text, -1) {
		add(m, EntityEmotion)
	}
	for _, m := range e.eventRe.FindAllString(text, -1) {
		add(m, EntityEvent)
	}

	if e.latinRe.MatchString(text) {
		if err := e.collectLatinSpans(text, add); err != nil {
			return spans, err
		}
	}
	e.collectCJKSpans(text, add)
	return spans, nil
}

// collectLatinSpans runs prose over the sentence and folds NER output plus a
// proper-noun heuristic into the span list.
func (e *EntityExtractor) collectLatinSpans(text string, add func(string, EntityType)) error {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return errors.Wrap(err, "prose tokenization")
	}

	for _, ent := range doc.Entities() {
		switch ent.Label {
		case "PERSON":
			add(ent.Text, EntityPerson)
		case "GPE":
			add(ent.Text, EntityPlace)
		default:
			add(ent.Text, EntityConcept)
		}
	}

	toks := doc.Tokens()
	for i, tok := range toks {
		if e.stopWords.Contains(strings.ToLower(tok.Text)) {
			continue
		}
		// Proper-noun heuristic: NNP-tagged or capitalized mid-sentence.
		if tok.Tag == "NNP" || tok.Tag == "NNPS" ||
			(i > 0 && len(tok.Text) > 1 && unicode.IsUpper([]rune(tok.Text)[0])) {
			add(tok.Text, EntityPerson)
		} else if strings.HasPrefix(tok.Tag, "NN") && len(tok.Text) > 2 {
			add(tok.Text, EntityConcept)
		}
	}
	return nil
}

// collectCJKSpans extracts Han and Katakana script runs as concept
// candidates; literary self-reference pronouns become person entities.
func (e *EntityExtractor) collectCJKSpans(text string, add func(string, EntityType)) {
	for _, run := range e.hanRunRe.FindAllString(text, -1) {
		if e.narrators.Contains(run) {
			add(run, EntityPerson)
			continue
		}
		if e.pronouns.Contains(run) {
			continue // handled by the binder
		}
		add(run, EntityConcept)
	}
	for _, run := range e.kataRunRe.FindAllString(text, -1) {
		add(run, EntityConcept)
	}
}

// resolvePronouns binds pronouns in the sentence to the nearest plausible
// non-pronoun antecedent: first among earlier spans of the same sentence,
// then one sentence back through the run table's entities mentioned there.
func (e *EntityExtractor) resolvePronouns(spans []span, text string, prev *Sentence, run *RunContext) []span {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	out := spans
	for _, w := range words {
		if !e.pronouns.Contains(strings.ToLower(w)) && !e.pronouns.Contains(w) {
			continue
		}
		if ante := e.nearestAntecedent(spans, prev, run); ante != nil {
			out = append(out, span{text: ante.text, kind: ante.kind, resolved: true})
		}
	}
	return out
}

// nearestAntecedent prefers the last person/place span of the current
// sentence, falling back to the most recent entity mentioned in the
// previous sentence.
func (e *EntityExtractor) nearestAntecedent(spans []span, prev *Sentence, run *RunContext) *span {
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].resolved {
			continue
		}
		if spans[i].kind == EntityPerson || spans[i].kind == EntityPlace || spans[i].kind == EntityConcept {
			return &spans[i]
		}
	}
	if prev == nil {
		return nil
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	for i := len(run.order) - 1; i >= 0; i-- {
		ent := run.byLabel[run.order[i]]
		for _, m := range ent.Mentions {
			if m.SentenceID == prev.ID {
				return &span{text: ent.Labels[0], kind: ent.Type}
			}
		}
	}
	return nil
}

// stripHonorifics removes honorific boilerplate from a label.
func (e *EntityExtractor) stripHonorifics(label string) string {
	out := strings.TrimSpace(label)
	for _, h := range e.honorifics {
		out = strings.TrimSpace(strings.TrimPrefix(out, h))
		out = strings.TrimSpace(strings.TrimSuffix(out, h))
	}
	return out
}

// mergeOntology folds a sentence distribution into the entity's running
// mean, keyed by the entity's mention count.
func mergeOntology(ent *Entity, sentenceWeights map[string]float64) {
	if len(sentenceWeights) == 0 {
		return
	}
	n := float64(len(ent.Mentions))
	if n <= 1 {
		for axis, w := range sentenceWeights {
			ent.Ontology[axis] = w
		}
		return
	}
	for axis, w := range sentenceWeights {
		ent.Ontology[axis] = (ent.Ontology[axis]*(n-1) + w) / n
	}
}

// NormalizeLabel lowercases, strips diacritics and collapses whitespace so
// label equality is case/diacritic-insensitive.
func NormalizeLabel(label string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(label)))
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
