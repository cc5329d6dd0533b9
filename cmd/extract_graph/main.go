package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bungolab/bungograph/pkg/embedding"
	"github.com/bungolab/bungograph/pkg/graph"
	"github.com/bungolab/bungograph/pkg/graph/metrics"
	"github.com/bungolab/bungograph/pkg/graph/processors"
	"github.com/bungolab/bungograph/pkg/graph/serializer"
	"github.com/bungolab/bungograph/pkg/graph/storage"
	"github.com/bungolab/bungograph/pkg/graph/visualizer"
)

var (
	inputFile  = flag.String("input", "", "Input document (txt, md, html or pdf)")
	title      = flag.String("title", "", "Work title (defaults to the input file name)")
	outputDir  = flag.String("output", "artifacts", "Directory for the script and mirror artifacts")
	edition    = flag.String("edition", "community", "Target store edition (community, enterprise)")
	strategy   = flag.String("strategy", "sentence_mean", "Ontology aggregation strategy (document_level, sentence_mean, segment_mean)")
	workers    = flag.Int("workers", 4, "Sentence scoring workers")
	embedModel = flag.Bool("embed-model", false, "Use the OpenAI embedding endpoint instead of the deterministic generator")
	embedDim   = flag.Int("embed-dim", embedding.DefaultDim, "Embedding dimensionality")
	embedWait  = flag.Duration("embed-timeout", embedding.DefaultTimeout, "Per-call embedding timeout")
	neo4jURI   = flag.String("neo4j-uri", "", "Apply the graph to this Neo4j instance after serialization")
	neo4jUser  = flag.String("neo4j-user", "neo4j", "Neo4j username")
	neo4jPass  = flag.String("neo4j-password", "", "Neo4j password")
	visualize  = flag.Bool("visualize", false, "Generate an HTML visualization of the graph")
	vizOutput  = flag.String("viz-output", "", "Visualization output file (defaults to <output>/<fingerprint>.html)")
	envFile    = flag.String("env", "", "Optional .env file with credentials")
	logLevel   = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logger.Fatalf("Failed to load env file: %v", err)
		}
	}

	if *inputFile == "" {
		logger.Fatal("Input file must be specified")
	}
	ed, err := serializer.ParseEdition(*edition)
	if err != nil {
		logger.Fatalf("Invalid edition: %v", err)
	}

	content, err := os.ReadFile(*inputFile)
	if err != nil {
		logger.Fatalf("Failed to read input file: %v", err)
	}

	ctx := context.Background()
	ingested, err := processors.ForPath(*inputFile).Process(ctx, content)
	if err != nil {
		logger.Fatalf("Failed to process input: %v", err)
	}

	workTitle := *title
	if workTitle == "" {
		base := filepath.Base(*inputFile)
		workTitle = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg := graph.DefaultConfig()
	cfg.Strategy = graph.AggregationStrategy(*strategy)
	cfg.Workers = *workers

	var embedder embedding.Embedder
	if *embedModel {
		embedder, err = embedding.NewOpenAIFromEnv(*embedDim, *embedWait)
		if err != nil {
			logger.Fatalf("Failed to configure embedding model: %v", err)
		}
	} else {
		embedder = embedding.NewFallback(embedding.ClampDim(*embedDim))
	}

	pipeline, err := graph.NewPipeline(cfg, embedder)
	if err != nil {
		logger.Fatalf("Failed to build pipeline: %v", err)
	}

	start := time.Now()
	work, run, err := pipeline.Extract(ctx, workTitle, ingested.Text, ingested.SourceType, ingested.TokenCountHint)
	if err != nil {
		logger.Fatalf("Extraction failed: %v", err)
	}
	for _, warning := range run.Warnings() {
		logger.Warn(warning)
	}

	g, err := graph.NewGraphBuilder(pipeline.IDs()).Build(work)
	if err != nil {
		logger.Fatalf("Failed to build graph: %v", err)
	}
	metrics.ObserveGraph(g)

	store := storage.NewArtifactStore(*outputDir, ed)
	if err := store.StoreGraph(ctx, g); err != nil {
		logger.Fatalf("Failed to store artifacts: %v", err)
	}

	logger.Infof("Graph emitted with %d nodes and %d edges in %s",
		len(g.Nodes), len(g.Edges), time.Since(start).Round(time.Millisecond))
	logger.Infof("Classification: %s (confidence %.3f)",
		work.Classification.Status, work.Classification.Confidence)
	logger.Infof("Script: %s", store.ScriptPath(g.Header.Fingerprint))
	logger.Infof("Mirror: %s", store.MirrorPath(g.Header.Fingerprint))

	if *neo4jURI != "" {
		applier, err := storage.NewNeo4jApplier(*neo4jURI, *neo4jUser, *neo4jPass, ed)
		if err != nil {
			logger.Fatalf("Failed to connect to Neo4j: %v", err)
		}
		defer applier.Close()
		if err := applier.Apply(ctx, g); err != nil {
			logger.Fatalf("Failed to apply graph: %v", err)
		}
		logger.Infof("Graph applied to %s", *neo4jURI)
	}

	if *visualize {
		out := *vizOutput
		if out == "" {
			out = filepath.Join(*outputDir, g.Header.Fingerprint+".html")
		}
		viz := visualizer.NewD3Visualizer(out)
		if err := viz.Visualize(g); err != nil {
			logger.Errorf("Failed to visualize graph: %v", err)
		} else {
			logger.Infof("Visualization saved to %s", out)
		}
	}
}
