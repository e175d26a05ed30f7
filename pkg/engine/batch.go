package engine

import (
	"fmt"
	"time"

	"github.com/sanonone/latticedb/pkg/lattice"
)

// Bulk operation names as reported in Progress and metric labels.
const (
	OpBulkAddNodes = "bulk_add_nodes"
	OpBulkSetLinks = "bulk_set_links"
)

// Progress describes the state of a bulk operation after one committed
// chunk. RunID ties all events of one call together.
type Progress struct {
	RunID   string
	Op      string
	Done    int
	Total   int
	Elapsed time.Duration
}

// chunks splits items into consecutive sub-slices of at most size
// elements. The sub-slices share the input's backing array. size must
// be positive; Open normalizes Options.BatchSize before any caller
// gets here.
func chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func (e *Engine) reportProgress(runID, op string, done, total int, start time.Time) {
	if e.opts.OnProgress == nil {
		return
	}
	e.opts.OnProgress(Progress{
		RunID:   runID,
		Op:      op,
		Done:    done,
		Total:   total,
		Elapsed: time.Since(start),
	})
}

// storageErr tags a driver failure with ErrStorageUnavailable while
// keeping the original error in the chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, lattice.ErrStorageUnavailable, err)
}
