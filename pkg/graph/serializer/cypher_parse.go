package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bungolab/bungograph/pkg/graph"
)

var (
	headerRe = regexp.MustCompile(`^// ([a-z_]+): (.*)$`)
	nodeRe   = regexp.MustCompile(`^MERGE \(n:(\w+) \{id: '([^']*)'\}\) SET n \+= (\{.*\});$`)
	edgeRe   = regexp.MustCompile(`^MATCH \(a \{id: '([^']*)'\}\), \(b \{id: '([^']*)'\}\) MERGE \(a\)-\[r:(\w+) \{id: '([^']*)'\}\]->\(b\) SET r \+= (\{.*\});$`)
)

// ParseScript reads a script previously produced by Serialize back into a
// property graph. It understands exactly the emitted statement subset; the
// restoration read contract is tree-level, so callers compare ToWork output
// rather than raw structs.
func ParseScript(data []byte) (*graph.GraphData, error) {
	g := &graph.GraphData{}
	edition := Edition("")

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		switch {
		case line == "" || line == "// knowledge graph export":
			continue
		case strings.HasPrefix(line, "// "):
			m := headerRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if err := applyHeaderField(g, &edition, m[1], m[2]); err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
		case strings.HasPrefix(line, "CREATE CONSTRAINT "):
			continue
		case strings.HasPrefix(line, "MERGE (n:"):
			m := nodeRe.FindStringSubmatch(line)
			if m == nil {
				return nil, errors.Errorf("line %d: malformed node statement", lineNo)
			}
			props, err := parseMapLiteral(m[3])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			if edition == EditionCommunity {
				props = unflattenMaps(props)
			}
			g.Nodes = append(g.Nodes, graph.Node{
				ID:         unescapeString(m[2]),
				Label:      nodeLabel(m[1], props),
				Type:       m[1],
				Properties: props,
			})
		case strings.HasPrefix(line, "MATCH (a "):
			m := edgeRe.FindStringSubmatch(line)
			if m == nil {
				return nil, errors.Errorf("line %d: malformed relationship statement", lineNo)
			}
			props, err := parseMapLiteral(m[5])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			weight, _ := props["weight"].(float64)
			g.Edges = append(g.Edges, graph.Edge{
				ID:         unescapeString(m[4]),
				Source:     unescapeString(m[1]),
				Target:     unescapeString(m[2]),
				Type:       m[3],
				Properties: props,
				Weight:     weight,
			})
		default:
			return nil, errors.Errorf("line %d: unrecognized statement", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading script")
	}
	if edition == "" {
		return nil, errors.Wrap(graph.ErrUnsupportedEdition, "script header missing edition")
	}
	return g, nil
}

func applyHeaderField(g *graph.GraphData, edition *Edition, key, value string) error {
	switch key {
	case "edition":
		e, err := ParseEdition(value)
		if err != nil {
			return err
		}
		*edition = e
	case "fingerprint":
		g.Header.Fingerprint = value
	case "seed_state":
		g.Header.SeedState = value
	case "confidence":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "parsing confidence")
		}
		g.Header.Confidence = f
	case "strategy":
		g.Header.Strategy = value
	case "generated_at":
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return errors.Wrap(err, "parsing generation timestamp")
		}
		g.Header.GeneratedAt = t.UTC()
	}
	return nil
}

// unflattenMaps re-nests community-dialect scalar keys into map properties.
func unflattenMaps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		idx := strings.Index(k, flattenSep)
		if idx < 0 {
			out[k] = v
			continue
		}
		base, sub := k[:idx], k[idx+len(flattenSep):]
		m, ok := out[base].(map[string]interface{})
		if !ok {
			m = make(map[string]interface{})
			out[base] = m
		}
		m[sub] = v
	}
	return out
}

// nodeLabel rebuilds the display label from the persisted properties, the
// same way the graph builder derived it.
func nodeLabel(typ string, props map[string]interface{}) string {
	switch typ {
	case graph.NodeWork:
		s, _ := props["title"].(string)
		return s
	case graph.NodeSegment:
		return fmt.Sprintf("segment %d", propInt(props, "order"))
	case graph.NodeSentence:
		return fmt.Sprintf("sentence %d", propInt(props, "order"))
	case graph.NodeEntity:
		if labels, ok := props["labels"].([]interface{}); ok && len(labels) > 0 {
			if s, ok := labels[0].(string); ok {
				return s
			}
		}
		return ""
	case graph.NodeCategory:
		s, _ := props["label"].(string)
		return s
	default:
		return ""
	}
}

func propInt(props map[string]interface{}, key string) int {
	if f, ok := props[key].(float64); ok {
		return int(f)
	}
	return 0
}

// literalScanner is a recursive-descent reader for the value grammar the
// serializer emits: single-quoted strings, shortest-form floats, booleans,
// lists and map literals with sorted keys.
type literalScanner struct {
	src []rune
	pos int
}

func parseMapLiteral(s string) (map[string]interface{}, error) {
	sc := &literalScanner{src: []rune(s)}
	v, err := sc.value()
	if err != nil {
		return nil, err
	}
	sc.skipSpace()
	if sc.pos != len(sc.src) {
		return nil, errors.Errorf("trailing input at offset %d", sc.pos)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("expected map literal")
	}
	return m, nil
}

func (sc *literalScanner) value() (interface{}, error) {
	sc.skipSpace()
	if sc.pos >= len(sc.src) {
		return nil, errors.New("unexpected end of literal")
	}
	switch sc.src[sc.pos] {
	case '\'':
		return sc.stringLit()
	case '[':
		return sc.listLit()
	case '{':
		return sc.mapLit()
	case 't', 'f':
		return sc.boolLit()
	default:
		return sc.numberLit()
	}
}

func (sc *literalScanner) stringLit() (string, error) {
	sc.pos++ // opening quote
	var b strings.Builder
	for sc.pos < len(sc.src) {
		r := sc.src[sc.pos]
		if r == '\\' && sc.pos+1 < len(sc.src) {
			b.WriteRune(unescapeRune(sc.src[sc.pos+1]))
			sc.pos += 2
			continue
		}
		if r == '\'' {
			sc.pos++
			return b.String(), nil
		}
		b.WriteRune(r)
		sc.pos++
	}
	return "", errors.New("unterminated string literal")
}

func (sc *literalScanner) listLit() ([]interface{}, error) {
	sc.pos++ // opening bracket
	out := make([]interface{}, 0)
	sc.skipSpace()
	if sc.pos < len(sc.src) && sc.src[sc.pos] == ']' {
		sc.pos++
		return out, nil
	}
	for {
		v, err := sc.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		sc.skipSpace()
		if sc.pos >= len(sc.src) {
			return nil, errors.New("unterminated list literal")
		}
		switch sc.src[sc.pos] {
		case ',':
			sc.pos++
		case ']':
			sc.pos++
			return out, nil
		default:
			return nil, errors.Errorf("unexpected %q in list literal", sc.src[sc.pos])
		}
	}
}

func (sc *literalScanner) mapLit() (map[string]interface{}, error) {
	sc.pos++ // opening brace
	out := make(map[string]interface{})
	sc.skipSpace()
	if sc.pos < len(sc.src) && sc.src[sc.pos] == '}' {
		sc.pos++
		return out, nil
	}
	for {
		key, err := sc.key()
		if err != nil {
			return nil, err
		}
		sc.skipSpace()
		if sc.pos >= len(sc.src) || sc.src[sc.pos] != ':' {
			return nil, errors.Errorf("expected ':' after key %q", key)
		}
		sc.pos++
		v, err := sc.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		sc.skipSpace()
		if sc.pos >= len(sc.src) {
			return nil, errors.New("unterminated map literal")
		}
		switch sc.src[sc.pos] {
		case ',':
			sc.pos++
			sc.skipSpace()
		case '}':
			sc.pos++
			return out, nil
		default:
			return nil, errors.Errorf("unexpected %q in map literal", sc.src[sc.pos])
		}
	}
}

func (sc *literalScanner) key() (string, error) {
	sc.skipSpace()
	if sc.pos < len(sc.src) && sc.src[sc.pos] == '`' {
		sc.pos++
		var b strings.Builder
		for sc.pos < len(sc.src) {
			if sc.src[sc.pos] == '`' {
				if sc.pos+1 < len(sc.src) && sc.src[sc.pos+1] == '`' {
					b.WriteRune('`')
					sc.pos += 2
					continue
				}
				sc.pos++
				return b.String(), nil
			}
			b.WriteRune(sc.src[sc.pos])
			sc.pos++
		}
		return "", errors.New("unterminated quoted key")
	}
	start := sc.pos
	for sc.pos < len(sc.src) {
		r := sc.src[sc.pos]
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sc.pos++
			continue
		}
		break
	}
	if sc.pos == start {
		return "", errors.New("expected map key")
	}
	return string(sc.src[start:sc.pos]), nil
}

func (sc *literalScanner) boolLit() (bool, error) {
	rest := string(sc.src[sc.pos:])
	if strings.HasPrefix(rest, "true") {
		sc.pos += 4
		return true, nil
	}
	if strings.HasPrefix(rest, "false") {
		sc.pos += 5
		return false, nil
	}
	return false, errors.New("malformed boolean literal")
}

func (sc *literalScanner) numberLit() (float64, error) {
	start := sc.pos
	for sc.pos < len(sc.src) {
		r := sc.src[sc.pos]
		if r == ',' || r == ']' || r == '}' || r == ' ' {
			break
		}
		sc.pos++
	}
	f, err := strconv.ParseFloat(string(sc.src[start:sc.pos]), 64)
	if err != nil {
		return 0, errors.Wrap(err, "parsing numeric literal")
	}
	return f, nil
}

func (sc *literalScanner) skipSpace() {
	for sc.pos < len(sc.src) && sc.src[sc.pos] == ' ' {
		sc.pos++
	}
}

func unescapeString(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			b.WriteRune(unescapeRune(runes[i+1]))
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// unescapeRune maps an escape-sequence rune back to the character the
// serializer escaped. Anything else was escaped verbatim.
func unescapeRune(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	default:
		return r
	}
}
