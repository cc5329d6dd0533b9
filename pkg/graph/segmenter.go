package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// SegmenterConfig tunes segmentation sensitivity.
type SegmenterConfig struct {
	// MinSentenceRunes is the minimum-length merge threshold: fragments
	// shorter than this are merged into the following sentence.
	MinSentenceRunes int
	// MSPerRune converts cumulative rune offsets into segment time-codes.
	MSPerRune int64
}

// DefaultSegmenterConfig returns the segmentation defaults.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MinSentenceRunes: 2,
		MSPerRune:        60,
	}
}

// Segmenter splits raw text into an ordered Segment/Sentence tree. Paragraph
// boundaries (blank-line breaks) define Segments; sentence-terminal
// punctuation, Latin and CJK, defines Sentences.
type Segmenter struct {
	cfg    SegmenterConfig
	logger *logrus.Logger
}

// NewSegmenter creates a segmenter with the given configuration. Zero config
// fields fall back to defaults.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	def := DefaultSegmenterConfig()
	if cfg.MinSentenceRunes <= 0 {
		cfg.MinSentenceRunes = def.MinSentenceRunes
	}
	if cfg.MSPerRune <= 0 {
		cfg.MSPerRune = def.MSPerRune
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Segmenter{cfg: cfg, logger: logger}
}

// Segment splits text into ordered segments with ordered sentences. Order
// indices start at 0 and are contiguous. Returns ErrEmptyInput when nothing
// survives trimming.
func (s *Segmenter) Segment(text string) ([]*Segment, error) {
	paragraphs := splitParagraphs(text)

	segments := make([]*Segment, 0, len(paragraphs))
	var cumRunes int64
	for _, para := range paragraphs {
		sentences := s.splitSentences(para)
		if len(sentences) == 0 {
			continue
		}

		seg := &Segment{
			Order:      len(segments),
			TimeCodeMS: cumRunes * s.cfg.MSPerRune,
			LengthHint: utf8.RuneCountInString(para),
			Sentences:  make([]*Sentence, 0, len(sentences)),
		}
		for i, sent := range sentences {
			seg.Sentences = append(seg.Sentences, &Sentence{
				Order: i,
				text:  sent,
			})
		}
		segments = append(segments, seg)
		cumRunes += int64(seg.LengthHint)
	}

	if len(segments) == 0 {
		return nil, ErrEmptyInput
	}

	s.logger.WithFields(logrus.Fields{
		"segments": len(segments),
	}).Debug("segmentation completed")
	return segments, nil
}

// splitParagraphs breaks text on blank-line-equivalent boundaries.
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")

	paragraphs := make([]string, 0)
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			p := strings.TrimSpace(strings.Join(cur, "\n"))
			if p != "" {
				paragraphs = append(paragraphs, p)
			}
			cur = cur[:0]
		}
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paragraphs
}

// sentenceTerminators covers Latin and CJK sentence-final punctuation.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true,
}

// closingQuotes stay attached to the sentence they close.
var closingQuotes = map[rune]bool{
	'」': true, '』': true, '"': true, '\'': true, '”': true, '’': true, ')': true, '）': true,
}

// splitSentences cuts one paragraph into sentences and applies the
// minimum-length merge rule: fragments shorter than the threshold are
// prepended to the following sentence (a short trailing fragment joins the
// previous one instead).
func (s *Segmenter) splitSentences(para string) []string {
	raw := make([]string, 0)
	var cur []rune
	runes := []rune(para)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur = append(cur, r)
		if !sentenceTerminators[r] {
			continue
		}
		// Consume trailing terminators ("!?", "……") and closing quotes.
		for i+1 < len(runes) && (sentenceTerminators[runes[i+1]] || closingQuotes[runes[i+1]]) {
			i++
			cur = append(cur, runes[i])
		}
		if frag := strings.TrimSpace(string(cur)); frag != "" {
			raw = append(raw, frag)
		}
		cur = cur[:0]
	}
	if frag := strings.TrimSpace(string(cur)); frag != "" {
		raw = append(raw, frag)
	}

	merged := make([]string, 0, len(raw))
	var carry string
	for i, frag := range raw {
		if carry != "" {
			frag = joinFragments(carry, frag)
			carry = ""
		}
		if utf8.RuneCountInString(strings.TrimRight(frag, ".!?。！？．")) < s.cfg.MinSentenceRunes {
			if i < len(raw)-1 {
				carry = frag
				continue
			}
			if len(merged) > 0 {
				merged[len(merged)-1] = joinFragments(merged[len(merged)-1], frag)
				continue
			}
		}
		merged = append(merged, frag)
	}
	if carry != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] = joinFragments(merged[len(merged)-1], carry)
		} else {
			merged = append(merged, carry)
		}
	}
	return merged
}

// joinFragments rejoins two fragments at a merge. A Latin word boundary
// keeps the space the original text had; CJK fragments join directly.
func joinFragments(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.In(last, unicode.Han, unicode.Hiragana, unicode.Katakana) ||
		unicode.In(first, unicode.Han, unicode.Hiragana, unicode.Katakana) {
		return a + b
	}
	return a + " " + b
}
