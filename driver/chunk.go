// Package driver holds the policies that establish the reference range of a cycle
package driver

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// Chunk captures the next Size dispatches newer than the lower bound.
// The established range spans the first and last captured stamps.
//
// The next cycle starts strictly after the range upper stamp, so queued dispatches sharing
// that stamp but left outside the chunk are skipped and dropped on the following commit.
// Use DuplicatesReject on the driver queue to refuse them at insertion instead.
type Chunk[S core.Stamp, V any] struct {
	size int
}

// NewChunk creates a chunk driver
func NewChunk[S core.Stamp, V any](config core.ChunkConfig) (*Chunk[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunk[S, V]{size: config.Size}, nil
}

// NewNext creates a driver capturing one dispatch per cycle
func NewNext[S core.Stamp, V any]() *Chunk[S, V] {
	return &Chunk[S, V]{size: 1}
}

// Size returns the number of dispatches captured per cycle
func (c *Chunk[S, V]) Size() int {
	return c.size
}

func (c *Chunk[S, V]) Role() core.Role {
	return core.RoleDriver
}

func (c *Chunk[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	start := q.UpperIndex(rng.Lower)
	if q.Len()-start < c.size {
		if q.Closed() {
			return flow.Selection[S, V]{}, core.StateAbort
		}
		return flow.Selection[S, V]{}, core.StateRetry
	}

	end := start + c.size
	rng.Lower = q.At(start).Stamp
	rng.Upper = q.At(end - 1).Stamp

	return flow.Selection[S, V]{
		Dispatches: q.Slice(start, end),
		Drop:       end,
	}, core.StatePrimed
}

func (c *Chunk[S, V]) Commit(flow.Selection[S, V]) {}

// Abort drops everything at or before t
func (c *Chunk[S, V]) Abort(q *queue.DispatchQueue[S, V], t S) {
	q.RemoveAtBefore(t)
}

func (c *Chunk[S, V]) Reset() {}
