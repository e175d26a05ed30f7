// Command latticedb is a small driver around the lattice engine: it
// ingests a demo pose lattice, wires a few adjacency links and reports
// throughput of the bulk path. Useful as a smoke test against a real
// database and as a usage example of the library.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanonone/latticedb/internal/config"
	"github.com/sanonone/latticedb/pkg/engine"
	"github.com/sanonone/latticedb/pkg/lattice"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	dsn := flag.String("dsn", "", "Database DSN, overrides the configuration file")
	driver := flag.String("driver", "", "Database driver (sqlite or postgres), overrides the configuration file")
	batchSize := flag.Int("batch-size", 0, "Bulk chunk size, overrides the configuration file")
	nodes := flag.Int("nodes", 20000, "Number of poses for the bulk ingest step")
	metricsAddr := flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	zlog, err := cfg.Logger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Ctrl+C cancels between bulk chunks; committed chunks stay.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		zlog.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	fmt.Println("LATTICEDB DEMO RUN")
	fmt.Println("------------------------------------------------")

	// ==========================================
	// 1. LIFECYCLE & CONFIG
	// ==========================================
	fmt.Println("[1] Opening store...")
	opts := cfg.EngineOptions(zlog)
	opts.OnProgress = func(p engine.Progress) {
		rate := 0.0
		if p.Elapsed > 0 {
			rate = float64(p.Done) / p.Elapsed.Seconds()
		}
		fmt.Printf("\r    %s: %d/%d (%.0f rows/s)", p.Op, p.Done, p.Total, rate)
	}
	store, err := engine.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()
	fmt.Printf("OK: %s store at %s\n", cfg.Driver, cfg.DSN)

	// ==========================================
	// 2. SINGLE INSERTS & DEDUP
	// ==========================================
	fmt.Println("\n[2] Inserting three poses...")
	aID, err := store.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(0, 0, 0, 0, 0, 0)})
	if err != nil {
		log.Fatalf("AddNode A failed: %v", err)
	}
	bID, err := store.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(2, 0, 0, 0, 0, 0)})
	if err != nil {
		log.Fatalf("AddNode B failed: %v", err)
	}
	cID, err := store.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(1, 3, 2, 0, 0, 0)})
	if err != nil {
		log.Fatalf("AddNode C failed: %v", err)
	}
	fmt.Printf("OK: ids %d, %d, %d\n", aID, bID, cID)

	dupID, err := store.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(0.0004, 0, 0, 0, 0, 0)})
	if err != nil {
		log.Fatalf("Duplicate AddNode failed: %v", err)
	}
	fmt.Printf("OK: near-duplicate of A collapsed onto id %d\n", dupID)

	// ==========================================
	// 3. ADJACENCY LINKS
	// ==========================================
	fmt.Println("\n[3] Linking A -> B (right) and A -> C (front)...")
	if err := store.SetLink(ctx, aID, bID, lattice.DirRight); err != nil {
		log.Fatalf("SetLink failed: %v", err)
	}
	if err := store.SetLink(ctx, aID, cID, lattice.DirFront); err != nil {
		log.Fatalf("SetLink failed: %v", err)
	}
	nb, err := store.Neighbors(ctx, aID)
	if err != nil {
		log.Fatalf("Neighbors failed: %v", err)
	}
	for _, d := range lattice.Directions() {
		if target := nb[d]; target != nil {
			fmt.Printf("    %-8s -> node %d\n", d, *target)
		} else {
			fmt.Printf("    %-8s -> (unset)\n", d)
		}
	}

	// ==========================================
	// 4. BULK INGEST
	// ==========================================
	fmt.Printf("\n[4] Bulk ingesting %d poses in chunks of %d...\n", *nodes, cfg.BatchSize)
	batch := make([]lattice.NodeData, 0, *nodes)
	for i := 0; i < *nodes; i++ {
		f := float64(i)
		batch = append(batch, lattice.NodeData{
			Pose: lattice.NewPose(f, f, f, f, f, 0),
		})
	}
	start := time.Now()
	mapping, err := store.BulkAddNodes(ctx, batch)
	fmt.Println()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			zlog.Warn("bulk ingest interrupted, committed chunks were kept")
			return
		}
		log.Fatalf("BulkAddNodes failed: %v", err)
	}
	elapsed := time.Since(start)
	fmt.Printf("OK: %d distinct keys mapped in %s (%.0f nodes/s)\n",
		len(mapping), elapsed.Round(time.Millisecond), float64(len(mapping))/elapsed.Seconds())

	// Re-ingesting a slice of the same poses must converge on the
	// same ids without growing the store.
	rerun, err := store.BulkAddNodes(ctx, batch[:min(1000, len(batch))])
	fmt.Println()
	if err != nil {
		log.Fatalf("Re-ingest failed: %v", err)
	}
	fmt.Printf("OK: re-ingest of %d poses returned %d existing ids\n", len(rerun), len(rerun))

	// ==========================================
	// 5. KEY INDEX SNAPSHOT
	// ==========================================
	fmt.Println("\n[5] Building ordered key snapshot...")
	snap, err := store.KeySnapshot(ctx)
	if err != nil {
		log.Fatalf("KeySnapshot failed: %v", err)
	}
	count, err := store.CountNodes(ctx)
	if err != nil {
		log.Fatalf("CountNodes failed: %v", err)
	}
	fmt.Printf("OK: %d keys indexed, store holds %d nodes\n", snap.Len(), count)
	if minEntry, ok := snap.Min(); ok {
		fmt.Printf("    min key %v -> node %d\n", minEntry.Key, minEntry.ID)
		// A key is itself a valid pose, so it resolves back to its node.
		backID, err := store.NodeID(ctx, minEntry.Key.Pose())
		if err != nil {
			log.Fatalf("NodeID on min key failed: %v", err)
		}
		fmt.Printf("    min key resolves back to node %d\n", backID)
	}
	if maxEntry, ok := snap.Max(); ok {
		fmt.Printf("    max key %v -> node %d\n", maxEntry.Key, maxEntry.ID)
	}

	// ==========================================
	// 6. VISITED FLAG
	// ==========================================
	fmt.Println("\n[6] Marking A visited...")
	if err := store.MarkVisited(ctx, aID, true); err != nil {
		log.Fatalf("MarkVisited failed: %v", err)
	}
	node, err := store.Node(ctx, aID)
	if err != nil {
		log.Fatalf("Node failed: %v", err)
	}
	fmt.Printf("OK: node %d visited=%v joints=%d\n", node.ID, node.Visited, len(node.JointAngles))

	fmt.Println("\nDONE")
}
