package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. Node Inserts (Counter)
	// Counts rows actually written by single and bulk node ingestion.
	NodesInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latticedb_nodes_inserted_total",
			Help: "Total number of lattice nodes inserted",
		},
	)

	// 2. Dedup Hits (Counter)
	// Counts poses that collapsed onto an already stored key.
	DedupHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latticedb_node_dedup_hits_total",
			Help: "Total number of node inserts skipped as duplicates",
		},
	)

	// 3. Link Updates (Counter)
	LinksUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latticedb_links_updated_total",
			Help: "Total number of adjacency slots written",
		},
	)

	// 4. Skipped Links (Counter)
	// A link whose source node does not exist is dropped, not failed.
	LinksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latticedb_links_skipped_total",
			Help: "Total number of link updates skipped because the source node is missing",
		},
	)

	// 5. Chunk Duration (Histogram)
	// Measures per-chunk commit time of the bulk paths, labeled by operation.
	ChunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latticedb_chunk_duration_seconds",
			Help:    "Duration of bulk chunk commits in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	// 6. Node Count (Gauge)
	// Tracks the number of stored nodes as last counted.
	NodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latticedb_nodes_total",
			Help: "Total number of stored lattice nodes",
		},
	)
)
