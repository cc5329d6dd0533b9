package graph

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentEmptyInput(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{})

	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		_, err := s.Segment(text)
		assert.Equal(t, ErrEmptyInput, errors.Cause(err))
	}
}

func TestSegmentSingleSentenceWithoutTerminator(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{})

	segments, err := s.Segment("a single sentence without punctuation")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Sentences, 1)
	assert.Equal(t, 0, segments[0].Order)
	assert.Equal(t, 0, segments[0].Sentences[0].Order)
	assert.Equal(t, int64(0), segments[0].TimeCodeMS)
}

func TestSegmentJapaneseTerminators(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{})

	segments, err := s.Segment("吾輩は猫である。名前はまだ無い。")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Sentences, 2)
	assert.Equal(t, "吾輩は猫である。", segments[0].Sentences[0].Text())
	assert.Equal(t, "名前はまだ無い。", segments[0].Sentences[1].Text())
}

func TestSegmentParagraphBoundariesAndTimeCodes(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{MSPerRune: 60})

	text := "First paragraph here.\n\nSecond paragraph follows."
	segments, err := s.Segment(text)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, 0, segments[0].Order)
	assert.Equal(t, 1, segments[1].Order)
	assert.Equal(t, int64(0), segments[0].TimeCodeMS)
	// Second segment time-code is the first paragraph's rune count at 60ms
	// per rune.
	assert.Equal(t, int64(len([]rune("First paragraph here."))*60), segments[1].TimeCodeMS)
	assert.Equal(t, len([]rune("Second paragraph follows.")), segments[1].LengthHint)
}

func TestSegmentClosingQuoteStaysAttached(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{})

	segments, err := s.Segment("「名前はまだ無い。」そう言った。")
	require.NoError(t, err)
	require.Len(t, segments[0].Sentences, 2)
	assert.Equal(t, "「名前はまだ無い。」", segments[0].Sentences[0].Text())
}

func TestSegmentShortFragmentMergesForward(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{MinSentenceRunes: 2})

	segments, err := s.Segment("A. Then a much longer sentence follows it.")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Sentences, 1)
	// The merge restores the word boundary between the fragments.
	assert.Equal(t, "A. Then a much longer sentence follows it.", segments[0].Sentences[0].Text())
}

func TestSegmentShortTrailingFragmentMergesBackward(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{MinSentenceRunes: 3})

	segments, err := s.Segment("A much longer sentence comes first. Ha.")
	require.NoError(t, err)
	require.Len(t, segments[0].Sentences, 1)
	assert.Equal(t, "A much longer sentence comes first. Ha.", segments[0].Sentences[0].Text())
}

func TestSegmentCJKFragmentMergesWithoutSpace(t *testing.T) {
	s := NewSegmenter(SegmenterConfig{MinSentenceRunes: 3})

	segments, err := s.Segment("嗚呼。名前はまだ無い。")
	require.NoError(t, err)
	require.Len(t, segments[0].Sentences, 1)
	assert.Equal(t, "嗚呼。名前はまだ無い。", segments[0].Sentences[0].Text())
}
