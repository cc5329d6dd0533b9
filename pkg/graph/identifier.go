package graph

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// hashLen is the fixed length of the content-derived identifier component.
const hashLen = 12

// IDGenerator produces identifiers of the form
//
//	<hash12>-<ts36>-<seq36>-<subtag>
//
// where hash12 is a base62 digest of the normalized content (stable across
// runs on identical input), ts36 is the monotonic millisecond timestamp and
// seq36 a per-run strictly increasing counter (both base36, zero-padded so
// the ts-seq section sorts lexicographically in emission order), and subtag
// encodes object type and local order. Identifiers are never reused, even
// across retries.
type IDGenerator struct {
	runID  string
	seq    atomic.Uint64
	lastTS atomic.Int64
}

// NewIDGenerator creates a generator for a single extraction run.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{runID: uuid.New().String()}
}

// Next returns a fresh identifier for the given content and object subtag.
// Safe for concurrent callers; the ts+seq section is strictly increasing
// even when content hashes collide.
func (g *IDGenerator) Next(content, subtag string) string {
	hash := ContentHash(content)
	ts := g.monotonicMillis()
	seq := g.seq.Add(1)
	return fmt.Sprintf("%s-%s-%s-%s",
		hash,
		padBase36(uint64(ts), 10),
		padBase36(seq, 6),
		subtag)
}

// RunID identifies this generator's run.
func (g *IDGenerator) RunID() string { return g.runID }

// SeedState reports the generator state for audit headers and failure
// diagnostics. It exposes no document content.
func (g *IDGenerator) SeedState() string {
	return fmt.Sprintf("run=%s seq=%d", g.runID, g.seq.Load())
}

// monotonicMillis returns the wall clock in ms, clamped so repeated calls
// never go backwards within a run.
func (g *IDGenerator) monotonicMillis() int64 {
	now := time.Now().UnixMilli()
	for {
		last := g.lastTS.Load()
		if now <= last {
			return last
		}
		if g.lastTS.CompareAndSwap(last, now) {
			return now
		}
	}
}

// ContentHash returns the fixed-length base62 digest of the normalized
// content. Normalization lowercases and collapses whitespace so the hash is
// stable across runs on byte-identical logical input.
func ContentHash(content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(norm))
	out := make([]byte, hashLen)
	for i := 0; i < hashLen; i++ {
		out[i] = base62Alphabet[int(sum[i])%len(base62Alphabet)]
	}
	return string(out)
}

// EmissionKey extracts the sortable ts-seq section of an identifier. Sorting
// identifiers by this key reproduces emission order.
func EmissionKey(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return id
	}
	return parts[1] + "-" + parts[2]
}

func padBase36(v uint64, width int) string {
	s := strconv.FormatUint(v, 36)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// Subtag helpers encoding object type and local order.

func subtagWork() string { return "wrk" }

func subtagSegment(order int) string { return fmt.Sprintf("seg%d", order) }

func subtagSentence(seg, ord int) string { return fmt.Sprintf("sen%d.%d", seg, ord) }

func subtagEntity() string { return "ent" }

func subtagCategory() string { return "cat" }
