package follower

import (
	"github.com/creastat/flow"
	"github.com/creastat/flow/core"
	"github.com/creastat/flow/queue"
)

// CountBefore captures the oldest Count dispatches at or before the driving range upper
// stamp, shifted back by Delay
type CountBefore[S core.Stamp, V any] struct {
	count int
	delay S
}

// NewCountBefore creates a count-before follower
func NewCountBefore[S core.Stamp, V any](config core.CountBeforeConfig[S]) (*CountBefore[S, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CountBefore[S, V]{
		count: config.Count,
		delay: config.Delay,
	}, nil
}

func (c *CountBefore[S, V]) Role() core.Role {
	return core.RoleFollower
}

func (c *CountBefore[S, V]) Locate(q *queue.DispatchQueue[S, V], rng *core.CaptureRange[S]) (flow.Selection[S, V], core.State) {
	bound, ok := earlier(rng.Upper, c.delay)
	if !ok || q.UpperIndex(bound) < c.count {
		return none[S, V](q)
	}
	return flow.Selection[S, V]{
		Dispatches: q.Slice(0, c.count),
		Drop:       c.count,
	}, core.StatePrimed
}

func (c *CountBefore[S, V]) Commit(flow.Selection[S, V]) {}

// Abort keeps everything: older dispatches still count towards later ranges
func (c *CountBefore[S, V]) Abort(*queue.DispatchQueue[S, V], S) {}

func (c *CountBefore[S, V]) Reset() {}
