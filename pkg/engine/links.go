package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sanonone/latticedb/pkg/lattice"
	"github.com/sanonone/latticedb/pkg/metrics"
)

// SetLink points the dir slot of node from at node to, overwriting any
// previous target. The direction is validated before anything is
// written. A from node that does not exist turns the call into a logged
// no-op; the target id is stored as given even when no node carries it
// yet.
func (e *Engine) SetLink(ctx context.Context, from, to lattice.NodeID, dir lattice.Direction) error {
	col := linkColumn(dir)
	if col == "" {
		return fmt.Errorf("%w: %v", lattice.ErrInvalidDirection, dir)
	}

	res := e.db.WithContext(ctx).
		Model(&nodeRow{}).
		Where("id = ?", int64(from)).
		Update(col, int64(to))
	if res.Error != nil {
		return storageErr("set link", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.LinksSkipped.Inc()
		e.log.Debug("link skipped, source node missing",
			zap.Int64("from", int64(from)),
			zap.Int64("to", int64(to)),
			zap.Stringer("direction", dir),
		)
		return nil
	}
	metrics.LinksUpdated.Inc()
	return nil
}

// BulkSetLinks applies link assignments in chunks, each chunk inside
// one transaction. An invalid direction or driver failure rolls back
// the chunk it occurs in and aborts the call; chunks committed before
// it stay committed. Re-running the full batch is safe, link writes are
// idempotent.
func (e *Engine) BulkSetLinks(ctx context.Context, links []lattice.Link) error {
	if len(links) == 0 {
		return nil
	}
	start := time.Now()
	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.String("op", OpBulkSetLinks))

	total := len(links)
	done := 0
	var updated, skipped int64
	for _, chunk := range chunks(links, e.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunkStart := time.Now()
		var chunkUpdated, chunkSkipped int64
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, l := range chunk {
				col := linkColumn(l.Dir)
				if col == "" {
					return fmt.Errorf("%w: %v", lattice.ErrInvalidDirection, l.Dir)
				}
				res := tx.Model(&nodeRow{}).
					Where("id = ?", int64(l.From)).
					Update(col, int64(l.To))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					chunkSkipped++
				} else {
					chunkUpdated++
				}
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, lattice.ErrInvalidDirection) {
				return err
			}
			return storageErr("bulk set links", err)
		}
		metrics.ChunkDuration.WithLabelValues(OpBulkSetLinks).Observe(time.Since(chunkStart).Seconds())
		updated += chunkUpdated
		skipped += chunkSkipped
		done += len(chunk)
		e.reportProgress(runID, OpBulkSetLinks, done, total, start)
		log.Debug("link chunk committed",
			zap.Int("rows", len(chunk)),
			zap.Int("done", done),
			zap.Int("total", total),
		)
	}
	metrics.LinksUpdated.Add(float64(updated))
	metrics.LinksSkipped.Add(float64(skipped))

	log.Info("bulk set links complete",
		zap.Int("links", total),
		zap.Int64("updated", updated),
		zap.Int64("skipped", skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Neighbors returns the adjacency of one node as a full 12-entry map
// with a nil target for every unset slot. A node that does not exist
// returns a nil map and no error, which keeps "absent node" and "node
// without links" distinguishable.
func (e *Engine) Neighbors(ctx context.Context, id lattice.NodeID) (lattice.Neighbors, error) {
	var row nodeRow
	err := e.db.WithContext(ctx).Where("id = ?", int64(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read neighbors", err)
	}
	return row.neighbors(), nil
}
