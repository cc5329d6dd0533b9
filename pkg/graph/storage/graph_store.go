package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/graph"
	"github.com/bungolab/bungograph/pkg/graph/serializer"
)

// GraphStore persists extracted property graphs.
type GraphStore interface {
	// StoreGraph persists one graph, keyed by its content fingerprint.
	StoreGraph(ctx context.Context, g *graph.GraphData) error

	// LoadGraph loads the graph stored under a fingerprint.
	LoadGraph(ctx context.Context, fingerprint string) (*graph.GraphData, error)
}

// ArtifactStore writes both artifacts of a graph into a directory: the
// Cypher script and its JSON mirror, named by fingerprint. Writes go
// through a temp file and rename so a crashed run never leaves a partial
// artifact under the final name.
type ArtifactStore struct {
	dir     string
	cypher  *serializer.CypherSerializer
	jsonSer *serializer.JSONSerializer
	logger  *logrus.Logger

	mu sync.Mutex
}

// NewArtifactStore creates a store rooted at dir, emitting scripts in the
// given edition.
func NewArtifactStore(dir string, edition serializer.Edition) *ArtifactStore {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &ArtifactStore{
		dir:     dir,
		cypher:  serializer.NewCypherSerializer(edition),
		jsonSer: serializer.NewJSONSerializer(),
		logger:  logger,
	}
}

// StoreGraph implements GraphStore. Both artifacts are written, script
// first; the JSON mirror is the one LoadGraph reads back.
func (s *ArtifactStore) StoreGraph(ctx context.Context, g *graph.GraphData) error {
	if g.Header.Fingerprint == "" {
		return errors.New("graph has no fingerprint")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	script, err := s.cypher.Serialize(g)
	if err != nil {
		return errors.Wrap(err, "rendering script artifact")
	}
	mirror, err := s.jsonSer.Serialize(g)
	if err != nil {
		return errors.Wrap(err, "rendering mirror artifact")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrap(err, "creating artifact directory")
	}
	if err := s.writeAtomic(s.ScriptPath(g.Header.Fingerprint), script); err != nil {
		return err
	}
	if err := s.writeAtomic(s.MirrorPath(g.Header.Fingerprint), mirror); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"fingerprint": g.Header.Fingerprint,
		"nodes":       len(g.Nodes),
		"edges":       len(g.Edges),
	}).Info("graph artifacts stored")
	return nil
}

// LoadGraph implements GraphStore.
func (s *ArtifactStore) LoadGraph(ctx context.Context, fingerprint string) (*graph.GraphData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.MirrorPath(fingerprint))
	if err != nil {
		return nil, errors.Wrapf(err, "reading artifact for %s", fingerprint)
	}
	return serializer.ParseJSON(data)
}

// ListFingerprints returns the fingerprints with a stored mirror artifact.
func (s *ArtifactStore) ListFingerprints() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "scanning artifact directory")
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		out = append(out, base[:len(base)-len(".json")])
	}
	return out, nil
}

// ScriptPath returns where the Cypher script for a fingerprint lives.
func (s *ArtifactStore) ScriptPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".cypher")
}

// MirrorPath returns where the JSON mirror for a fingerprint lives.
func (s *ArtifactStore) MirrorPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}

func (s *ArtifactStore) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "publishing %s", path)
	}
	return nil
}
