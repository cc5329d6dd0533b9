package serializer

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bungolab/bungograph/pkg/graph"
)

// Edition selects the Cypher dialect of the target store. Enterprise emits
// node-key constraints and map-literal properties; community downgrades the
// node key to a single-property uniqueness constraint and flattens map
// properties into scalar keys.
type Edition string

const (
	EditionCommunity  Edition = "community"
	EditionEnterprise Edition = "enterprise"
)

// ParseEdition validates an edition flag value.
func ParseEdition(s string) (Edition, error) {
	switch Edition(s) {
	case EditionCommunity, EditionEnterprise:
		return Edition(s), nil
	default:
		return "", errors.Wrapf(graph.ErrUnsupportedEdition, "%q", s)
	}
}

// flattenSep joins a map property key to its sub-key in the community
// dialect. None of the emitted base keys contain a double underscore, so
// re-nesting on parse is unambiguous.
const flattenSep = "__"

// CypherSerializer renders a property graph as an idempotent Cypher script.
// Output is byte-identical across calls on equal input: property keys are
// sorted, floats use the shortest round-trippable form, and statement order
// follows graph emission order.
type CypherSerializer struct {
	edition Edition
}

func NewCypherSerializer(edition Edition) *CypherSerializer {
	return &CypherSerializer{edition: edition}
}

// Serialize renders the full script: audit header, schema constraints, node
// merges, then relationship merges.
func (s *CypherSerializer) Serialize(g *graph.GraphData) ([]byte, error) {
	stmts, err := s.Statements(g)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	s.writeHeader(&buf, g)
	for _, stmt := range stmts {
		buf.WriteString(stmt)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Statements returns the executable statements of the script, without the
// comment header, in replay order.
func (s *CypherSerializer) Statements(g *graph.GraphData) ([]string, error) {
	data, err := s.DataStatements(g)
	if err != nil {
		return nil, err
	}
	return append(s.SchemaStatements(), data...), nil
}

// SchemaStatements returns the constraint statements for the edition. The
// Neo4j applier runs these in auto-commit mode; schema changes cannot share
// a transaction with data writes.
func (s *CypherSerializer) SchemaStatements() []string {
	return s.constraints()
}

// DataStatements returns the node and relationship merges in replay order.
func (s *CypherSerializer) DataStatements(g *graph.GraphData) ([]string, error) {
	if g == nil {
		return nil, errors.New("cannot serialize nil graph")
	}
	stmts := make([]string, 0, len(g.Nodes)+len(g.Edges))
	for _, n := range g.Nodes {
		stmt, err := s.nodeStatement(n)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	for _, e := range g.Edges {
		stmt, err := s.edgeStatement(e)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (s *CypherSerializer) writeHeader(buf *bytes.Buffer, g *graph.GraphData) {
	fmt.Fprintf(buf, "// knowledge graph export\n")
	fmt.Fprintf(buf, "// edition: %s\n", s.edition)
	fmt.Fprintf(buf, "// fingerprint: %s\n", g.Header.Fingerprint)
	fmt.Fprintf(buf, "// seed_state: %s\n", g.Header.SeedState)
	fmt.Fprintf(buf, "// confidence: %s\n", formatFloat(g.Header.Confidence))
	fmt.Fprintf(buf, "// strategy: %s\n", g.Header.Strategy)
	fmt.Fprintf(buf, "// generated_at: %s\n", g.Header.GeneratedAt.Format(time.RFC3339Nano))
	buf.WriteByte('\n')
}

func (s *CypherSerializer) constraints() []string {
	stmts := make([]string, 0, 5)
	for _, label := range []string{graph.NodeWork, graph.NodeSegment, graph.NodeSentence, graph.NodeEntity} {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s_id_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE;",
			strings.ToLower(label), label))
	}
	if s.edition == EditionEnterprise {
		stmts = append(stmts,
			"CREATE CONSTRAINT category_key IF NOT EXISTS FOR (n:Category) REQUIRE (n.code, n.label) IS NODE KEY;")
	} else {
		stmts = append(stmts,
			"CREATE CONSTRAINT category_code_unique IF NOT EXISTS FOR (n:Category) REQUIRE n.code IS UNIQUE;")
	}
	return stmts
}

func (s *CypherSerializer) nodeStatement(n graph.Node) (string, error) {
	props, err := s.renderProps(n.Properties)
	if err != nil {
		return "", errors.Wrapf(err, "node %s", n.ID)
	}
	return fmt.Sprintf("MERGE (n:%s {id: '%s'}) SET n += %s;", n.Type, escapeString(n.ID), props), nil
}

func (s *CypherSerializer) edgeStatement(e graph.Edge) (string, error) {
	props := make(map[string]interface{}, len(e.Properties)+1)
	for k, v := range e.Properties {
		props[k] = v
	}
	props["weight"] = e.Weight
	rendered, err := s.renderProps(props)
	if err != nil {
		return "", errors.Wrapf(err, "edge %s", e.ID)
	}
	return fmt.Sprintf(
		"MATCH (a {id: '%s'}), (b {id: '%s'}) MERGE (a)-[r:%s {id: '%s'}]->(b) SET r += %s;",
		escapeString(e.Source), escapeString(e.Target), e.Type, escapeString(e.ID), rendered), nil
}

// renderProps renders a sorted map literal. In the community dialect, map
// values are first flattened to scalar keys.
func (s *CypherSerializer) renderProps(props map[string]interface{}) (string, error) {
	if s.edition == EditionCommunity {
		props = flattenMaps(props)
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := renderValue(props[k])
		if err != nil {
			return "", errors.Wrapf(err, "property %s", k)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", renderKey(k), v))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

func flattenMaps(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		if m, ok := v.(map[string]interface{}); ok {
			for sub, sv := range m {
				out[k+flattenSep+sub] = sv
			}
			continue
		}
		out[k] = v
	}
	return out
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func renderKey(k string) string {
	if identRe.MatchString(k) {
		return k
	}
	return "`" + strings.ReplaceAll(k, "`", "``") + "`"
}

func renderValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return "'" + escapeString(t) + "'", nil
	case float64:
		return formatFloat(t), nil
	case float32:
		return formatFloat(float64(t)), nil
	case int:
		return formatFloat(float64(t)), nil
	case int64:
		return formatFloat(float64(t)), nil
	case bool:
		return strconv.FormatBool(t), nil
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			r, err := renderValue(item)
			if err != nil {
				return "", err
			}
			parts[i] = r
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			r, err := renderValue(t[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s: %s", renderKey(k), r))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", errors.Errorf("unsupported property type %T", v)
	}
}

// formatFloat emits the shortest decimal form that parses back to the same
// float64. Both serializers and both parsers share it, which is what makes
// the artifacts byte-stable and numerically lossless.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// escapeString keeps every emitted string literal on one line: statements
// are parsed back line by line, so newlines must not survive raw.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}
