package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/sanonone/latticedb/pkg/lattice"
)

func jointsOf(v float64) lattice.JointAngles {
	j := make(lattice.JointAngles, lattice.JointCount)
	for i := range j {
		j[i] = v
	}
	return j
}

func TestAddNodeIdempotent(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()
	p := lattice.NewPose(0.5, -1.25, 3, 10, 0, -90)

	first, err := eng.AddNode(ctx, lattice.NodeData{Pose: p})
	if err != nil {
		t.Fatalf("first AddNode failed: %v", err)
	}
	second, err := eng.AddNode(ctx, lattice.NodeData{Pose: p})
	if err != nil {
		t.Fatalf("second AddNode failed: %v", err)
	}
	if first != second {
		t.Errorf("duplicate insert changed id: %d vs %d", first, second)
	}

	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d nodes, want 1", n)
	}
}

func TestAddNodeCollapsesNearbyPoses(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	// Both poses quantize to (1.0, 2.0, 3.0, 0, 0, 0).
	a, err := eng.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(1.0001, 2.0004, 2.9996, 0, 0, 0)})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	b, err := eng.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(0.9999, 1.9999, 3.0004, 0, 0, 0)})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if a != b {
		t.Errorf("rounded-equal poses got distinct ids: %d vs %d", a, b)
	}
}

func TestAddNodeFirstWriterWins(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.AddNode(ctx, lattice.NodeData{
		Pose:        lattice.NewPose(1, 1, 1, 0, 0, 0),
		JointAngles: jointsOf(1.5),
		Visited:     true,
	})
	if err != nil {
		t.Fatalf("first AddNode failed: %v", err)
	}

	// Same key, different payload: the stored payload must not change.
	dup, err := eng.AddNode(ctx, lattice.NodeData{
		Pose:        lattice.NewPose(1.0004, 1, 1, 0, 0, 0),
		JointAngles: jointsOf(9.9),
		Visited:     false,
	})
	if err != nil {
		t.Fatalf("duplicate AddNode failed: %v", err)
	}
	if dup != id {
		t.Fatalf("duplicate got id %d, want %d", dup, id)
	}

	node, err := eng.Node(ctx, id)
	if err != nil {
		t.Fatalf("Node failed: %v", err)
	}
	if !node.Visited {
		t.Error("visited flag overwritten by duplicate insert")
	}
	if node.JointAngles[0] != 1.5 {
		t.Errorf("joint angles overwritten by duplicate insert: %v", node.JointAngles[0])
	}
}

func TestAddNodeRejectsInvalidInput(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	cases := []lattice.NodeData{
		{Pose: lattice.NewPose(math.NaN(), 0, 0, 0, 0, 0)},
		{Pose: lattice.NewPose(0, 0, 0, 0, math.Inf(1), 0)},
		{Pose: lattice.NewPose(0, 0, 0, 0, 0, 0), JointAngles: lattice.JointAngles{1, 2, 3}},
	}
	for i, nd := range cases {
		if _, err := eng.AddNode(ctx, nd); !errors.Is(err, lattice.ErrInvalidPose) {
			t.Errorf("case %d: got %v, want ErrInvalidPose", i, err)
		}
	}

	// Nothing may have been written.
	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 0 {
		t.Errorf("store has %d nodes after rejected inserts, want 0", n)
	}
}

func TestNodeLookupsMissing(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	if _, err := eng.NodeID(ctx, lattice.NewPose(5, 5, 5, 0, 0, 0)); !errors.Is(err, lattice.ErrNodeNotFound) {
		t.Errorf("NodeID: got %v, want ErrNodeNotFound", err)
	}
	if _, err := eng.Node(ctx, 424242); !errors.Is(err, lattice.ErrNodeNotFound) {
		t.Errorf("Node: got %v, want ErrNodeNotFound", err)
	}
	if err := eng.MarkVisited(ctx, 424242, true); !errors.Is(err, lattice.ErrNodeNotFound) {
		t.Errorf("MarkVisited: got %v, want ErrNodeNotFound", err)
	}
}

func TestMarkVisited(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(1, 0, 0, 0, 0, 0)})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if err := eng.MarkVisited(ctx, id, true); err != nil {
		t.Fatalf("MarkVisited failed: %v", err)
	}
	node, err := eng.Node(ctx, id)
	if err != nil {
		t.Fatalf("Node failed: %v", err)
	}
	if !node.Visited {
		t.Error("visited flag not set")
	}

	if err := eng.MarkVisited(ctx, id, false); err != nil {
		t.Fatalf("MarkVisited(false) failed: %v", err)
	}
	node, err = eng.Node(ctx, id)
	if err != nil {
		t.Fatalf("Node failed: %v", err)
	}
	if node.Visited {
		t.Error("visited flag not cleared")
	}
}

func TestBulkAddNodesCoverage(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	// 1. One key exists before the bulk run.
	preID, err := eng.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(0, 0, 0, 0, 0, 0)})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	// 2. The batch holds the pre-existing key, an in-batch duplicate
	// pair and two fresh poses: 4 distinct keys in total.
	batch := []lattice.NodeData{
		{Pose: lattice.NewPose(0.0004, 0, 0, 0, 0, 0)},  // collapses onto preID
		{Pose: lattice.NewPose(1, 1, 1, 0, 0, 0)},       // fresh
		{Pose: lattice.NewPose(1.0001, 1, 1, 0, 0, 0)},  // duplicate of the above
		{Pose: lattice.NewPose(2, 2, 2, 0, 0, 0)},       // fresh
		{Pose: lattice.NewPose(3, 3, 3, 90, 0, -90.25)}, // fresh
	}
	got, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("BulkAddNodes failed: %v", err)
	}

	// 3. The mapping covers every distinct input key exactly.
	if len(got) != 4 {
		t.Fatalf("got %d mappings, want 4", len(got))
	}
	for _, nd := range batch {
		k, qErr := lattice.Quantize(nd.Pose)
		if qErr != nil {
			t.Fatalf("Quantize failed: %v", qErr)
		}
		id, ok := got[k]
		if !ok {
			t.Errorf("key %v missing from result", k)
			continue
		}
		if id <= 0 {
			t.Errorf("key %v mapped to non-positive id %d", k, id)
		}
		// Each mapping must agree with a direct lookup.
		direct, lErr := eng.NodeID(ctx, nd.Pose)
		if lErr != nil {
			t.Fatalf("NodeID failed: %v", lErr)
		}
		if direct != id {
			t.Errorf("key %v: bulk id %d != lookup id %d", k, id, direct)
		}
	}

	// 4. The pre-existing key kept its id, and the store holds exactly
	// the distinct keys.
	zeroKey, _ := lattice.Quantize(lattice.NewPose(0, 0, 0, 0, 0, 0))
	if got[zeroKey] != preID {
		t.Errorf("pre-existing key remapped: got %d, want %d", got[zeroKey], preID)
	}
	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 4 {
		t.Errorf("store has %d nodes, want 4", n)
	}
}

func TestBulkAddNodesRerunConverges(t *testing.T) {
	eng := openTestEngineBatch(t, 3)
	ctx := context.Background()

	batch := make([]lattice.NodeData, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, lattice.NodeData{Pose: lattice.NewPose(float64(i), 0.5, -0.5, 0, float64(i), 0)})
	}

	first, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("first BulkAddNodes failed: %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("first run mapped %d keys, want 10", len(first))
	}

	// A rerun inserts nothing but must return the identical mapping.
	// With BatchSize 3 every chunk conflicts wholesale, so this drives
	// the lookup pass.
	second, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("second BulkAddNodes failed: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("second run mapped %d keys, want %d", len(second), len(first))
	}
	for k, id := range first {
		if second[k] != id {
			t.Errorf("key %v changed id across reruns: %d vs %d", k, id, second[k])
		}
	}

	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 10 {
		t.Errorf("store has %d nodes after rerun, want 10", n)
	}
}

func TestBulkAddNodesPartialOverlap(t *testing.T) {
	eng := openTestEngineBatch(t, 4)
	ctx := context.Background()

	// 1. Seed every even x so later chunks mix hits and misses.
	seed := make([]lattice.NodeData, 0, 5)
	for i := 0; i < 10; i += 2 {
		seed = append(seed, lattice.NodeData{Pose: lattice.NewPose(float64(i), 0, 0, 0, 0, 0)})
	}
	seeded, err := eng.BulkAddNodes(ctx, seed)
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	// 2. Ingest all of x 0..9, half duplicates half fresh.
	batch := make([]lattice.NodeData, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, lattice.NodeData{Pose: lattice.NewPose(float64(i), 0, 0, 0, 0, 0)})
	}
	got, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("BulkAddNodes failed: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d mappings, want 10", len(got))
	}

	// 3. Seeded keys keep their ids.
	for k, id := range seeded {
		if got[k] != id {
			t.Errorf("seeded key %v remapped: got %d, want %d", k, got[k], id)
		}
	}
	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 10 {
		t.Errorf("store has %d nodes, want 10", n)
	}
}

func TestBulkAddNodesValidatesWholeBatch(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	batch := []lattice.NodeData{
		{Pose: lattice.NewPose(1, 0, 0, 0, 0, 0)},
		{Pose: lattice.NewPose(math.Inf(-1), 0, 0, 0, 0, 0)},
	}
	if _, err := eng.BulkAddNodes(ctx, batch); !errors.Is(err, lattice.ErrInvalidPose) {
		t.Fatalf("got %v, want ErrInvalidPose", err)
	}

	// Validation runs before any chunk is written.
	n, err := eng.CountNodes(ctx)
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 0 {
		t.Errorf("store has %d nodes after rejected batch, want 0", n)
	}
}

func TestBulkAddNodesEmptyBatch(t *testing.T) {
	eng := openTestEngine(t)

	got, err := eng.BulkAddNodes(context.Background(), nil)
	if err != nil {
		t.Fatalf("BulkAddNodes(nil) failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d mappings for empty batch, want 0", len(got))
	}
}

func TestBulkAddNodesProgressEvents(t *testing.T) {
	var events []Progress
	opts := DefaultOptions(filepath.Join(t.TempDir(), "lattice.db"))
	opts.BatchSize = 2
	opts.OnProgress = func(p Progress) { events = append(events, p) }
	eng, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer eng.Close()

	batch := make([]lattice.NodeData, 0, 5)
	for i := 0; i < 5; i++ {
		batch = append(batch, lattice.NodeData{Pose: lattice.NewPose(float64(i), 0, 0, 0, 0, 0)})
	}
	if _, err := eng.BulkAddNodes(context.Background(), batch); err != nil {
		t.Fatalf("BulkAddNodes failed: %v", err)
	}

	// 5 rows in chunks of 2 -> 3 events, done growing to total.
	if len(events) != 3 {
		t.Fatalf("got %d progress events, want 3", len(events))
	}
	wantDone := []int{2, 4, 5}
	for i, ev := range events {
		if ev.Op != OpBulkAddNodes {
			t.Errorf("event %d: op %q, want %q", i, ev.Op, OpBulkAddNodes)
		}
		if ev.RunID == "" || ev.RunID != events[0].RunID {
			t.Errorf("event %d: inconsistent run id %q", i, ev.RunID)
		}
		if ev.Done != wantDone[i] || ev.Total != 5 {
			t.Errorf("event %d: got %d/%d, want %d/5", i, ev.Done, ev.Total, wantDone[i])
		}
	}
}

func TestBulkAddNodesCancelBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultOptions(filepath.Join(t.TempDir(), "lattice.db"))
	opts.BatchSize = 2
	// Cancel as soon as the first chunk has committed.
	opts.OnProgress = func(p Progress) {
		if p.Done == 2 {
			cancel()
		}
	}
	eng, err := Open(opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer eng.Close()

	batch := make([]lattice.NodeData, 0, 6)
	for i := 0; i < 6; i++ {
		batch = append(batch, lattice.NodeData{Pose: lattice.NewPose(float64(i), 0, 0, 0, 0, 0)})
	}
	if _, err := eng.BulkAddNodes(ctx, batch); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// The committed chunk stays, the rest was never written.
	n, err := eng.CountNodes(context.Background())
	if err != nil {
		t.Fatalf("CountNodes failed: %v", err)
	}
	if n != 2 {
		t.Errorf("store has %d nodes after cancellation, want 2", n)
	}
}

func TestAllNodeKeysAndSnapshot(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	ids := make(map[lattice.Key]lattice.NodeID)
	for _, x := range []float64{3, 1, 2} {
		p := lattice.NewPose(x, 0, 0, 0, 0, 0)
		id, err := eng.AddNode(ctx, lattice.NodeData{Pose: p})
		if err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
		k, _ := lattice.Quantize(p)
		ids[k] = id
	}

	// 1. The flat mapping matches what was inserted.
	keys, err := eng.AllNodeKeys(ctx)
	if err != nil {
		t.Fatalf("AllNodeKeys failed: %v", err)
	}
	if len(keys) != len(ids) {
		t.Fatalf("got %d keys, want %d", len(keys), len(ids))
	}
	for k, id := range ids {
		if keys[k] != id {
			t.Errorf("key %v: got id %d, want %d", k, keys[k], id)
		}
	}

	// 2. The snapshot is ordered and detached from later writes.
	snap, err := eng.KeySnapshot(ctx)
	if err != nil {
		t.Fatalf("KeySnapshot failed: %v", err)
	}
	if snap.Len() != 3 {
		t.Fatalf("snapshot holds %d keys, want 3", snap.Len())
	}
	var xs []float64
	snap.Scan(func(k lattice.Key, id lattice.NodeID) bool {
		xs = append(xs, k.X)
		return true
	})
	for i := 1; i < len(xs); i++ {
		if xs[i-1] >= xs[i] {
			t.Fatalf("snapshot out of order: %v", xs)
		}
	}

	if _, err := eng.AddNode(ctx, lattice.NodeData{Pose: lattice.NewPose(99, 0, 0, 0, 0, 0)}); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if snap.Len() != 3 {
		t.Errorf("snapshot grew after a later write: %d", snap.Len())
	}
}

func TestBulkAddNodesScale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 20k bulk ingest in short mode")
	}
	eng := openTestEngine(t)
	ctx := context.Background()

	const n = 20000
	batch := make([]lattice.NodeData, 0, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		batch = append(batch, lattice.NodeData{Pose: lattice.NewPose(f, f, f, f, f, 0)})
	}

	got, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("BulkAddNodes failed: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d mappings, want %d", len(got), n)
	}

	keys, err := eng.AllNodeKeys(ctx)
	if err != nil {
		t.Fatalf("AllNodeKeys failed: %v", err)
	}
	if len(keys) < n {
		t.Errorf("store reports %d keys, want at least %d", len(keys), n)
	}

	// Re-running the identical batch drives the lookup pass at scale
	// and must converge on the same mapping.
	again, err := eng.BulkAddNodes(ctx, batch)
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if len(again) != n {
		t.Fatalf("rerun mapped %d keys, want %d", len(again), n)
	}
	for k, id := range got {
		if again[k] != id {
			t.Fatalf("key %v changed id across reruns: %d vs %d", k, id, again[k])
		}
	}
}
