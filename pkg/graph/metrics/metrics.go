package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bungolab/bungograph/pkg/graph"
)

var (
	// System metrics
	SystemMemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_memory_bytes",
		Help: "Current system memory usage",
	})

	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "system_goroutines",
		Help: "Number of goroutines",
	})

	// Graph metrics, set from the most recently built graph
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Number of nodes in the last emitted graph",
		},
		[]string{"node_type"},
	)

	GraphEdgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_edges_total",
			Help: "Number of edges in the last emitted graph",
		},
		[]string{"edge_type"},
	)

	GraphConfidence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graph_classification_confidence",
		Help: "Consensus confidence of the last emitted graph",
	})

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingestion errors",
		},
		[]string{"processor", "error_type"},
	)
)

// ObserveGraph records the shape of one emitted graph.
func ObserveGraph(g *graph.GraphData) {
	GraphNodeCount.Reset()
	GraphEdgeCount.Reset()
	for _, n := range g.Nodes {
		GraphNodeCount.WithLabelValues(n.Type).Inc()
	}
	for _, e := range g.Edges {
		GraphEdgeCount.WithLabelValues(e.Type).Inc()
	}
	GraphConfidence.Set(g.Header.Confidence)
}

// UpdateSystemMetrics updates system-level metrics
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	SystemMemoryUsage.Set(float64(m.Alloc))
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
