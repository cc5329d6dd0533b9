package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bungolab/bungograph/pkg/graph/catalog"
)

func findEntity(entities []*Entity, normLabel string) *Entity {
	for _, ent := range entities {
		if ent.NormLabel == normLabel {
			return ent
		}
	}
	return nil
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "cafe", NormalizeLabel("  Café "))
	assert.Equal(t, "soseki natsume", NormalizeLabel("Sōseki   Natsume"))
	assert.Equal(t, "吾輩", NormalizeLabel("吾輩"))
	assert.Equal(t, "", NormalizeLabel("   "))
}

func TestExtractJapaneseNarratorAndConcept(t *testing.T) {
	e := NewEntityExtractor()
	run := NewRunContext()

	sent := &Sentence{
		ID:       "s1",
		text:     "吾輩は猫である。",
		Ontology: map[string]float64{catalog.AxisNarrative: 1.0},
	}
	require.NoError(t, e.Extract(run, nil, sent))

	entities := run.Entities()
	narrator := findEntity(entities, "吾輩")
	require.NotNil(t, narrator)
	assert.Equal(t, EntityPerson, narrator.Type)

	cat := findEntity(entities, "猫")
	require.NotNil(t, cat)
	assert.Equal(t, EntityConcept, cat.Type)
	require.Len(t, cat.Mentions, 1)
	assert.Equal(t, "s1", cat.Mentions[0].SentenceID)
	assert.Equal(t, 1.0, cat.Mentions[0].Weight)
	assert.InDelta(t, 1.0, cat.Ontology[catalog.AxisNarrative], 1e-9)
}

func TestExtractDeduplicatesAcrossSentences(t *testing.T) {
	e := NewEntityExtractor()
	run := NewRunContext()

	s1 := &Sentence{ID: "s1", text: "猫が庭にいた。"}
	s2 := &Sentence{ID: "s2", text: "猫は眠っていた。"}
	require.NoError(t, e.Extract(run, nil, s1))
	require.NoError(t, e.Extract(run, s1, s2))

	cat := findEntity(run.Entities(), "猫")
	require.NotNil(t, cat)
	require.Len(t, cat.Mentions, 2)
	assert.Equal(t, "s1", cat.Mentions[0].SentenceID)
	assert.Equal(t, "s2", cat.Mentions[1].SentenceID)

	// One table entry, not two.
	count := 0
	for _, ent := range run.Entities() {
		if ent.NormLabel == "猫" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractTemporalAndPlacePatterns(t *testing.T) {
	e := NewEntityExtractor()
	run := NewRunContext()

	sent := &Sentence{ID: "s1", text: "昨日、学校で泣いた。"}
	require.NoError(t, e.Extract(run, nil, sent))

	entities := run.Entities()
	yesterday := findEntity(entities, "昨日")
	require.NotNil(t, yesterday)
	assert.Equal(t, EntityTemporal, yesterday.Type)

	school := findEntity(entities, "学校")
	require.NotNil(t, school)
	assert.Equal(t, EntityPlace, school.Type)
}

func TestExtractResolvesPronounToPreviousSentence(t *testing.T) {
	e := NewEntityExtractor()
	run := NewRunContext()

	prev := &Sentence{ID: "s1", text: "吾輩は猫である。"}
	require.NoError(t, e.Extract(run, nil, prev))

	cur := &Sentence{ID: "s2", text: "it"}
	require.NoError(t, e.Extract(run, prev, cur))

	// The pronoun binds to the most recent entity of the previous sentence
	// with the reduced mention weight.
	cat := findEntity(run.Entities(), "猫")
	require.NotNil(t, cat)
	require.Len(t, cat.Mentions, 2)
	assert.Equal(t, "s2", cat.Mentions[1].SentenceID)
	assert.Equal(t, 0.5, cat.Mentions[1].Weight)
}

func TestExtractStripsHonorifics(t *testing.T) {
	e := NewEntityExtractor()

	assert.Equal(t, "苦沙弥", e.stripHonorifics("苦沙弥さん"))
	assert.Equal(t, "Holmes", e.stripHonorifics("Mr. Holmes"))

	run := NewRunContext()
	sent := &Sentence{ID: "s1", text: "迷亭君が来た。"}
	require.NoError(t, e.Extract(run, nil, sent))
	assert.NotNil(t, findEntity(run.Entities(), "迷亭"))
}

func TestExtractNilAndEmptySentences(t *testing.T) {
	e := NewEntityExtractor()
	run := NewRunContext()

	require.NoError(t, e.Extract(run, nil, nil))
	require.NoError(t, e.Extract(run, nil, &Sentence{ID: "s1"}))
	assert.Empty(t, run.Entities())
}

func TestRunContextWarnings(t *testing.T) {
	run := NewRunContext()
	run.Warn("first")
	run.Warn("second")

	warnings := run.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "first", warnings[0])
}
