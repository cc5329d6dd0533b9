package graph

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashStableAcrossWhitespaceAndCase(t *testing.T) {
	a := ContentHash("吾輩は猫である。 Name  has not yet come.")
	b := ContentHash("  吾輩は猫である。\nNAME HAS NOT YET COME.  ")

	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
}

func TestContentHashDiffersOnContent(t *testing.T) {
	assert.NotEqual(t, ContentHash("first text"), ContentHash("second text"))
}

func TestNextIdentifierShape(t *testing.T) {
	gen := NewIDGenerator()
	id := gen.Next("some content", subtagSentence(2, 5))

	parts := strings.Split(id, "-")
	require.Len(t, parts, 4)
	assert.Len(t, parts[0], 12)
	assert.Len(t, parts[1], 10)
	assert.Len(t, parts[2], 6)
	assert.Equal(t, "sen2.5", parts[3])
}

func TestNextIsUniqueAndOrderedUnderConcurrency(t *testing.T) {
	gen := NewIDGenerator()

	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = gen.Next("identical content", subtagEntity())
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	keys := make(map[string]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
		keys[EmissionKey(id)] = true
	}
	// Identical content still yields distinct sortable sections.
	assert.Len(t, keys, n)
}

func TestEmissionKeyReproducesEmissionOrder(t *testing.T) {
	gen := NewIDGenerator()
	prev := ""
	for i := 0; i < 50; i++ {
		id := gen.Next("content", subtagWork())
		key := EmissionKey(id)
		if prev != "" {
			assert.True(t, prev < key, "key %s not after %s", key, prev)
		}
		prev = key
	}
}

func TestSeedStateExposesRunAndSequence(t *testing.T) {
	gen := NewIDGenerator()
	gen.Next("x", subtagWork())
	gen.Next("y", subtagCategory())

	state := gen.SeedState()
	assert.Contains(t, state, "run="+gen.RunID())
	assert.Contains(t, state, "seq=2")
}
