package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sanonone/latticedb/pkg/lattice"
	"github.com/sanonone/latticedb/pkg/metrics"
)

// conflictOnPoseKey makes inserts ignore rows whose quantized key is
// already stored, matching the unique index on the six pose columns.
var conflictOnPoseKey = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "x"}, {Name: "y"}, {Name: "z"},
		{Name: "rx"}, {Name: "ry"}, {Name: "rz"},
	},
	DoNothing: true,
}

// AddNode inserts one node, or returns the id of the existing node when
// the pose quantizes to an already stored key. The write is
// insert-or-ignore, so racing duplicate inserts are safe and the first
// writer's payload wins.
func (e *Engine) AddNode(ctx context.Context, nd lattice.NodeData) (lattice.NodeID, error) {
	key, err := lattice.Quantize(nd.Pose)
	if err != nil {
		return 0, err
	}
	joints, err := lattice.NormalizeJointAngles(nd.JointAngles)
	if err != nil {
		return 0, err
	}

	row := newNodeRow(key, joints, nd.Visited)
	res := e.db.WithContext(ctx).
		Select(nodeInsertColumns).
		Clauses(conflictOnPoseKey).
		Create(&row)
	if res.Error != nil {
		return 0, storageErr("add node", res.Error)
	}
	if res.RowsAffected == 1 {
		metrics.NodesInserted.Inc()
		return lattice.NodeID(row.ID), nil
	}

	// Conflict: the key is already stored, resolve its id instead.
	metrics.DedupHits.Inc()
	return e.lookupKey(ctx, key)
}

// BulkAddNodes ingests a batch of poses and returns a mapping that
// covers every distinct quantized key of the input, freshly inserted or
// already present.
//
// The work runs in three passes. The input is validated, quantized and
// collapsed to distinct keys first, first occurrence wins. The distinct
// rows are then written chunk by chunk with insert-or-ignore, each
// chunk in its own transaction, collecting the ids the insert hands
// back. Keys the insert did not report, because their row already
// existed, are resolved by a final batched lookup pass over the pose
// columns.
//
// A failing chunk aborts the call but leaves earlier chunks committed;
// re-running the same batch converges because every write is
// insert-or-ignore. Context cancellation is honored between chunks.
func (e *Engine) BulkAddNodes(ctx context.Context, batch []lattice.NodeData) (map[lattice.Key]lattice.NodeID, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.String("op", OpBulkAddNodes))

	// Pass 0: quantize and collapse in-batch duplicates.
	rows := make([]nodeRow, 0, len(batch))
	seen := make(map[lattice.Key]struct{}, len(batch))
	for i, nd := range batch {
		key, err := lattice.Quantize(nd.Pose)
		if err != nil {
			return nil, fmt.Errorf("pose %d: %w", i, err)
		}
		joints, err := lattice.NormalizeJointAngles(nd.JointAngles)
		if err != nil {
			return nil, fmt.Errorf("pose %d: %w", i, err)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, newNodeRow(key, joints, nd.Visited))
	}

	result := make(map[lattice.Key]lattice.NodeID, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	// Pass 1: chunked insert-or-ignore.
	var inserted int64
	total := len(rows)
	done := 0
	for _, chunk := range chunks(rows, e.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunkStart := time.Now()
		var affected int64
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Select(nodeInsertColumns).
				Clauses(conflictOnPoseKey).
				Create(&chunk)
			affected = res.RowsAffected
			return res.Error
		})
		if err != nil {
			return nil, storageErr("bulk insert nodes", err)
		}
		metrics.ChunkDuration.WithLabelValues(OpBulkAddNodes).Observe(time.Since(chunkStart).Seconds())

		// Backfilled ids line up with the rows only when the whole
		// chunk was inserted. A chunk with conflicts is left to the
		// lookup pass.
		if affected == int64(len(chunk)) {
			for i := range chunk {
				result[chunk[i].key()] = lattice.NodeID(chunk[i].ID)
			}
		}
		inserted += affected
		done += len(chunk)
		e.reportProgress(runID, OpBulkAddNodes, done, total, start)
		log.Debug("node chunk committed",
			zap.Int("rows", len(chunk)),
			zap.Int64("inserted", affected),
			zap.Int("done", done),
			zap.Int("total", total),
		)
	}
	metrics.NodesInserted.Add(float64(inserted))
	metrics.DedupHits.Add(float64(int64(total) - inserted))

	// Pass 2: resolve the keys the insert did not report.
	missing := make([]lattice.Key, 0, total-len(result))
	for i := range rows {
		if _, ok := result[rows[i].key()]; !ok {
			missing = append(missing, rows[i].key())
		}
	}
	if len(missing) > 0 {
		found, err := e.resolveKeys(ctx, missing)
		if err != nil {
			return nil, err
		}
		for k, id := range found {
			result[k] = id
		}
	}

	// Every distinct input key must be covered now. A hole means the
	// store lost a committed row between the two passes.
	for _, k := range missing {
		if _, ok := result[k]; !ok {
			return nil, fmt.Errorf("bulk insert nodes: %w: key %v unresolved after lookup pass", lattice.ErrStorageUnavailable, k)
		}
	}

	log.Info("bulk add nodes complete",
		zap.Int("input", len(batch)),
		zap.Int("distinct", total),
		zap.Int64("inserted", inserted),
		zap.Int64("existing", int64(total)-inserted),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// resolveKeys fetches ids for already stored keys with batched tuple
// lookups, fanned out over the connection pool.
func (e *Engine) resolveKeys(ctx context.Context, keys []lattice.Key) (map[lattice.Key]lattice.NodeID, error) {
	parts := chunks(keys, e.opts.BatchSize)
	found := make([][]nodeRow, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for ci, part := range parts {
		g.Go(func() error {
			tuples := make([][]any, len(part))
			for i, k := range part {
				tuples[i] = []any{k.X, k.Y, k.Z, k.RX, k.RY, k.RZ}
			}
			var rows []nodeRow
			err := e.db.WithContext(gctx).
				Select("id", "x", "y", "z", "rx", "ry", "rz").
				Where("(x, y, z, rx, ry, rz) IN ?", tuples).
				Find(&rows).Error
			if err != nil {
				return storageErr("lookup node keys", err)
			}
			found[ci] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[lattice.Key]lattice.NodeID, len(keys))
	for _, rows := range found {
		for i := range rows {
			out[rows[i].key()] = lattice.NodeID(rows[i].ID)
		}
	}
	return out, nil
}

// NodeID resolves a pose to the id of its stored node, or
// ErrNodeNotFound when the quantized key is absent.
func (e *Engine) NodeID(ctx context.Context, p lattice.Pose) (lattice.NodeID, error) {
	key, err := lattice.Quantize(p)
	if err != nil {
		return 0, err
	}
	return e.lookupKey(ctx, key)
}

func (e *Engine) lookupKey(ctx context.Context, k lattice.Key) (lattice.NodeID, error) {
	var row nodeRow
	err := e.db.WithContext(ctx).
		Select("id").
		Where("x = ? AND y = ? AND z = ? AND rx = ? AND ry = ? AND rz = ?",
			k.X, k.Y, k.Z, k.RX, k.RY, k.RZ).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: key %v", lattice.ErrNodeNotFound, k)
	}
	if err != nil {
		return 0, storageErr("lookup node", err)
	}
	return lattice.NodeID(row.ID), nil
}

// Node reads one node with payload and full adjacency.
func (e *Engine) Node(ctx context.Context, id lattice.NodeID) (lattice.Node, error) {
	var row nodeRow
	err := e.db.WithContext(ctx).Where("id = ?", int64(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lattice.Node{}, fmt.Errorf("%w: id %d", lattice.ErrNodeNotFound, id)
	}
	if err != nil {
		return lattice.Node{}, storageErr("read node", err)
	}
	return row.node(), nil
}

// AllNodeKeys loads the key-to-id mapping of every stored node.
func (e *Engine) AllNodeKeys(ctx context.Context) (map[lattice.Key]lattice.NodeID, error) {
	var rows []nodeRow
	err := e.db.WithContext(ctx).
		Select("id", "x", "y", "z", "rx", "ry", "rz").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("load node keys", err)
	}
	out := make(map[lattice.Key]lattice.NodeID, len(rows))
	for i := range rows {
		out[rows[i].key()] = lattice.NodeID(rows[i].ID)
	}
	return out, nil
}

// KeySnapshot loads every stored key into an ordered in-memory index.
// The snapshot is detached: writes after this call are not reflected.
func (e *Engine) KeySnapshot(ctx context.Context) (*lattice.KeyIndex, error) {
	keys, err := e.AllNodeKeys(ctx)
	if err != nil {
		return nil, err
	}
	ix := lattice.NewKeyIndex()
	for k, id := range keys {
		ix.Set(k, id)
	}
	return ix, nil
}

// MarkVisited flips the visited flag of one node.
func (e *Engine) MarkVisited(ctx context.Context, id lattice.NodeID, visited bool) error {
	v := 0
	if visited {
		v = 1
	}
	res := e.db.WithContext(ctx).
		Model(&nodeRow{}).
		Where("id = ?", int64(id)).
		Update("is_visited", v)
	if res.Error != nil {
		return storageErr("mark visited", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", lattice.ErrNodeNotFound, id)
	}
	return nil
}

// CountNodes reports the number of stored nodes and refreshes the node
// count gauge.
func (e *Engine) CountNodes(ctx context.Context) (int64, error) {
	var n int64
	if err := e.db.WithContext(ctx).Model(&nodeRow{}).Count(&n).Error; err != nil {
		return 0, storageErr("count nodes", err)
	}
	metrics.NodesTotal.Set(float64(n))
	return n, nil
}
