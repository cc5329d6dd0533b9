package serializer

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/bungolab/bungograph/pkg/graph"
)

// JSONSerializer writes the lossless mirror artifact. The same graph always
// yields the same bytes: encoding/json emits struct fields in declaration
// order and map keys sorted, and floats share the shortest round-trippable
// form with the Cypher script.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

// Serialize renders the graph as indented JSON with a trailing newline.
func (s *JSONSerializer) Serialize(g *graph.GraphData) ([]byte, error) {
	if g == nil {
		return nil, errors.New("cannot serialize nil graph")
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding graph")
	}
	return append(data, '\n'), nil
}

// ParseJSON reads the mirror artifact back. The audit header is validated
// before decoding so truncated or foreign files fail fast with a specific
// error instead of a half-populated graph.
func ParseJSON(data []byte) (*graph.GraphData, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("artifact is not valid JSON")
	}
	parsed := gjson.ParseBytes(data)
	for _, field := range []string{"header.fingerprint", "header.seed_state", "header.generated_at"} {
		if !parsed.Get(field).Exists() {
			return nil, errors.Errorf("artifact missing %s", field)
		}
	}
	if !parsed.Get("nodes").IsArray() {
		return nil, errors.New("artifact missing nodes array")
	}

	var g graph.GraphData
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "decoding graph")
	}
	g.Header.GeneratedAt = g.Header.GeneratedAt.UTC()
	return &g, nil
}
