package storage

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/graph"
	"github.com/bungolab/bungograph/pkg/graph/serializer"
)

// Neo4jApplier replays a graph's Cypher statements against a live store.
// Because the statements are the same MERGE script the serializer writes to
// disk, applying a graph twice leaves the store unchanged.
type Neo4jApplier struct {
	driver neo4j.Driver
	cypher *serializer.CypherSerializer
	logger *logrus.Logger
}

// NewNeo4jApplier connects to a Neo4j instance with basic auth.
func NewNeo4jApplier(uri, username, password string, edition serializer.Edition) (*Neo4jApplier, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "creating neo4j driver")
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return &Neo4jApplier{
		driver: driver,
		cypher: serializer.NewCypherSerializer(edition),
		logger: logger,
	}, nil
}

// Apply writes one graph. Constraints run first in auto-commit mode, since
// schema statements cannot share a transaction with data writes; the node
// and relationship merges then run in a single write transaction so a
// failed apply leaves no partial graph behind.
func (a *Neo4jApplier) Apply(ctx context.Context, g *graph.GraphData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dataStmts, err := a.cypher.DataStatements(g)
	if err != nil {
		return err
	}

	session := a.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	for _, stmt := range a.cypher.SchemaStatements() {
		if _, err := session.Run(stmt, nil); err != nil {
			return errors.Wrap(err, "applying schema constraint")
		}
	}

	_, err = session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		for _, stmt := range dataStmts {
			if _, err := tx.Run(stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrapf(err, "applying graph %s", g.Header.Fingerprint)
	}

	a.logger.WithFields(logrus.Fields{
		"fingerprint": g.Header.Fingerprint,
		"statements":  len(dataStmts),
	}).Info("graph applied to neo4j")
	return nil
}

// Verify checks connectivity without writing anything.
func (a *Neo4jApplier) Verify() error {
	return errors.Wrap(a.driver.VerifyConnectivity(), "verifying neo4j connectivity")
}

// Close releases the underlying driver.
func (a *Neo4jApplier) Close() error {
	return a.driver.Close()
}
